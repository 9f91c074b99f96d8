// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package optimizer

import (
	"fmt"
	"math"
	"strings"

	"github.com/clipsight/clipsight/internal/models"
)

// detectorWeights are the relative weights used for the detector-weighted
// score and for ranking ties.
var detectorWeights = map[string]float64{
	models.DetectorTimeToValue:       0.32,
	models.DetectorOpenLoops:         0.16,
	models.DetectorDeadZones:         0.22,
	models.DetectorPatternInterrupts: 0.20,
	models.DetectorCTAStyle:          0.10,
}

// detectorTargets are the per-detector target scores.
var detectorTargets = map[string]float64{
	models.DetectorTimeToValue:       85,
	models.DetectorOpenLoops:         75,
	models.DetectorDeadZones:         85,
	models.DetectorPatternInterrupts: 78,
	models.DetectorCTAStyle:          85,
}

// detectorEdits are the prewritten edit suggestions per detector.
var detectorEdits = map[string][]string{
	models.DetectorTimeToValue: {
		"Move the payoff or outcome claim into the first line",
		"Cut setup sentences that precede the first concrete claim",
	},
	models.DetectorOpenLoops: {
		"Add a teaser for a later payoff near the start of the body",
		"Reference an upcoming reveal so viewers hold on",
	},
	models.DetectorDeadZones: {
		"Break long segments into shorter lines with distinct beats",
		"Insert a visual or verbal beat inside any gap over six seconds",
	},
	models.DetectorPatternInterrupts: {
		"Add a rhetorical question or numbered step mid-script",
		"Use a contrast word to reset attention between sections",
	},
	models.DetectorCTAStyle: {
		"End with a single, explicit call to action",
		"Remove competing asks so the tail carries one intent",
	},
}

var valueClaimWords = []string{"how", "why", "result", "proof", "grow", "boost",
	"secret", "mistake", "save", "earn", "learn", "step"}

var openLoopPhrases = []string{"in a second", "by the end", "stick around", "coming up"}

var interruptMarkers = []string{"but ", "step 1", "step 2", "step 3", "first,", "second,", "third,"}

// runDetectors computes the five rule-based scores for a transcript.
func runDetectors(tr Transcript, analysis simulatedAnalysis, durationS float64, format models.FormatType) []models.DetectorResult {
	results := []models.DetectorResult{
		detectTimeToValue(tr, durationS),
		detectOpenLoops(tr),
		detectDeadZones(tr),
		detectPatternInterrupts(tr, format),
		detectCTAStyle(tr, analysis),
	}
	for i := range results {
		results[i].TargetScore = detectorTargets[results[i].Key]
		results[i].Weight = detectorWeights[results[i].Key]
		results[i].Gap = math.Max(0, results[i].TargetScore-results[i].Score)
		results[i].Edits = detectorEdits[results[i].Key]
	}
	return results
}

// detectTimeToValue penalizes linearly by the seconds until a claim or
// outcome word first appears.
func detectTimeToValue(tr Transcript, durationS float64) models.DetectorResult {
	firstValueAt := durationS
	found := false
	for _, seg := range tr.Segments {
		lower := strings.ToLower(seg.Text)
		if containsAny(lower, valueClaimWords) || containsDigit(seg.Text) {
			firstValueAt = seg.Start
			found = true
			break
		}
	}

	score := clip(100-firstValueAt*9, 0, 100)
	evidence := []string{fmt.Sprintf("first value signal at %.1fs", firstValueAt)}
	if !found {
		score = 20
		evidence = []string{"no claim or outcome word found in any segment"}
	}
	return models.DetectorResult{
		Key:      models.DetectorTimeToValue,
		Score:    round2(score),
		Evidence: evidence,
	}
}

// detectOpenLoops rewards teaser phrases in the body, capped.
func detectOpenLoops(tr Transcript) models.DetectorResult {
	lower := strings.ToLower(tr.Text)
	count := 0
	for _, phrase := range openLoopPhrases {
		count += strings.Count(lower, phrase)
	}

	score := clip(40+float64(count)*20, 0, 95)
	return models.DetectorResult{
		Key:      models.DetectorOpenLoops,
		Score:    round2(score),
		Evidence: []string{fmt.Sprintf("%d open-loop phrases detected", count)},
	}
}

// detectDeadZones inversely penalizes contentless windows of 6s or more
// between segment ends.
func detectDeadZones(tr Transcript) models.DetectorResult {
	deadZones := 0
	for i := 1; i < len(tr.Segments); i++ {
		gap := tr.Segments[i].Start - tr.Segments[i-1].End
		if gap >= 6 {
			deadZones++
		}
	}
	// Long single segments also read as dead air.
	for _, seg := range tr.Segments {
		if seg.End-seg.Start >= 12 {
			deadZones++
		}
	}

	score := clip(92-float64(deadZones)*18, 10, 100)
	return models.DetectorResult{
		Key:      models.DetectorDeadZones,
		Score:    round2(score),
		Evidence: []string{fmt.Sprintf("%d dead zones of 6s or more", deadZones)},
	}
}

// detectPatternInterrupts compares transition/emphasis markers against the
// ideal cadence for the format.
func detectPatternInterrupts(tr Transcript, format models.FormatType) models.DetectorResult {
	lower := strings.ToLower(tr.Text)
	count := 0
	for _, marker := range interruptMarkers {
		count += strings.Count(lower, marker)
	}
	count += strings.Count(tr.Text, "?")

	ideal := 2.0
	if format == models.FormatLong {
		ideal = 5.0
	}
	ratio := clip(float64(count)/ideal, 0, 1.4)
	score := clip(40+ratio*45, 0, 100)
	return models.DetectorResult{
		Key:      models.DetectorPatternInterrupts,
		Score:    round2(score),
		Evidence: []string{fmt.Sprintf("%d interrupt markers against an ideal of %.0f", count, ideal)},
	}
}

// detectCTAStyle checks presence and uniqueness of a single CTA intent at
// the script tail.
func detectCTAStyle(tr Transcript, analysis simulatedAnalysis) models.DetectorResult {
	tail := ""
	if n := len(tr.Segments); n > 0 {
		tail = strings.ToLower(tr.Segments[n-1].Text)
	}

	intents := 0
	for _, w := range ctaDirectWords {
		if strings.Contains(tail, w) {
			intents++
		}
	}

	var score float64
	var evidence string
	switch {
	case intents == 1:
		score = 90
		evidence = "single explicit CTA intent at the tail"
	case intents > 1:
		score = 62
		evidence = fmt.Sprintf("%d competing CTA intents at the tail", intents)
	case analysis.CTAScore >= 74:
		score = 58
		evidence = "CTA present but not at the script tail"
	default:
		score = 30
		evidence = "no call to action found"
	}
	return models.DetectorResult{
		Key:      models.DetectorCTAStyle,
		Score:    round2(score),
		Evidence: []string{evidence},
	}
}

// detectorWeightedScore is the weighted sum of detector scores.
func detectorWeightedScore(detectors []models.DetectorResult) float64 {
	total := 0.0
	for _, d := range detectors {
		total += d.Score * d.Weight
	}
	return round2(total)
}
