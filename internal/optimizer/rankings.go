// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clipsight/clipsight/internal/models"
)

// detectorTitles render a ranking entry as an action headline.
var detectorTitles = map[string]string{
	models.DetectorTimeToValue:       "Deliver value sooner",
	models.DetectorOpenLoops:         "Open a loop early",
	models.DetectorDeadZones:         "Eliminate dead air",
	models.DetectorPatternInterrupts: "Add pattern interrupts",
	models.DetectorCTAStyle:          "Sharpen the call to action",
}

// rankDetectors orders detectors by gap then weight and grades priority.
func rankDetectors(detectors []models.DetectorResult) []models.DetectorRanking {
	sorted := make([]models.DetectorResult, len(detectors))
	copy(sorted, detectors)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Gap != sorted[j].Gap {
			return sorted[i].Gap > sorted[j].Gap
		}
		return sorted[i].Weight > sorted[j].Weight
	})

	rankings := make([]models.DetectorRanking, 0, len(sorted))
	for i, d := range sorted {
		rank := i + 1
		priority := "low"
		switch {
		case rank <= 2:
			priority = "high"
		case rank == 3:
			priority = "medium"
		}
		rankings = append(rankings, models.DetectorRanking{
			DetectorResult:      d,
			Rank:                rank,
			Priority:            priority,
			EstimatedLiftPoints: round2(d.Gap * d.Weight / 4),
		})
	}
	return rankings
}

// nextActions reshapes the top 3 rankings into prescriptive steps.
func nextActions(rankings []models.DetectorRanking) []models.NextAction {
	actions := make([]models.NextAction, 0, 3)
	for _, r := range rankings {
		if len(actions) == 3 {
			break
		}
		why := ""
		if len(r.Evidence) > 0 {
			why = r.Evidence[0]
		}
		actions = append(actions, models.NextAction{
			Title:              detectorTitles[r.Key],
			DetectorKey:        r.Key,
			Priority:           r.Priority,
			Why:                why,
			ExpectedLiftPoints: r.EstimatedLiftPoints,
			ExecutionSteps:     r.Edits,
		})
	}
	return actions
}

// editTargetLine picks the offending line index for a detector. Returns a
// 0-based index into lines.
func editTargetLine(detectorKey string, lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	switch detectorKey {
	case models.DetectorTimeToValue, models.DetectorCTAStyle:
		return 0
	case models.DetectorOpenLoops:
		if len(lines) > 1 {
			return 1
		}
		return 0
	case models.DetectorDeadZones:
		longest := 0
		for i, line := range lines {
			if len(line) > len(lines[longest]) {
				longest = i
			}
		}
		return longest
	case models.DetectorPatternInterrupts:
		return len(lines) / 2
	default:
		return 0
	}
}

// suggestLine rewrites one line under a detector's guidance.
func suggestLine(detectorKey, line string) string {
	switch detectorKey {
	case models.DetectorTimeToValue:
		return "Here's the result up front: " + line
	case models.DetectorOpenLoops:
		return line + " And in a second I'll show you the part most people miss."
	case models.DetectorDeadZones:
		return "Split into two beats: " + line
	case models.DetectorPatternInterrupts:
		return "But here's the twist. " + line
	case models.DetectorCTAStyle:
		return strings.TrimRight(line, ".!? ") + ". Comment what you'd try first."
	default:
		return line
	}
}

// cadenceTarget is the pacing note appended to edit reasons.
func cadenceTarget(format models.FormatType) string {
	if format == models.FormatLong {
		return "aim for a new beat every 20-30 seconds"
	}
	return "aim for a new beat every 3-5 seconds"
}

// lineLevelEdits emits one rewrite per top-5 ranked detector, targeting
// the line its heuristic implicates.
func lineLevelEdits(rankings []models.DetectorRanking, lines []string, format models.FormatType) []models.LineEdit {
	if len(lines) == 0 {
		return nil
	}

	edits := make([]models.LineEdit, 0, 5)
	for _, r := range rankings {
		if len(edits) == 5 {
			break
		}
		idx := editTargetLine(r.Key, lines)
		reason := fmt.Sprintf("%s gap of %.0f points; %s", r.Key, r.Gap, cadenceTarget(format))
		edits = append(edits, models.LineEdit{
			DetectorKey:   r.Key,
			Priority:      r.Priority,
			LineNumber:    idx + 1,
			OriginalLine:  lines[idx],
			SuggestedLine: suggestLine(r.Key, lines[idx]),
			Reason:        reason,
		})
	}
	return edits
}

// improvementDiff compares the rescored result against the supplied
// baseline score and prior detector rankings.
func improvementDiff(combined float64, rankings []models.DetectorRanking, baselineScore *float64, baselineRankings []models.DetectorRanking, weights map[string]float64) *models.ImprovementDiff {
	diff := &models.ImprovementDiff{
		Combined: models.ImprovementDelta{After: combined},
		Weights:  weights,
	}
	if baselineScore != nil {
		before := *baselineScore
		delta := round2(combined - before)
		diff.Combined.Before = &before
		diff.Combined.Delta = &delta
	}

	prior := make(map[string]float64, len(baselineRankings))
	for _, b := range baselineRankings {
		prior[b.Key] = b.Score
	}
	for _, r := range rankings {
		dd := models.DetectorDelta{
			DetectorKey: r.Key,
			AfterScore:  r.Score,
		}
		if before, ok := prior[r.Key]; ok {
			b := before
			delta := round2(r.Score - before)
			dd.BeforeScore = &b
			dd.Delta = &delta
		}
		diff.Detectors = append(diff.Detectors, dd)
	}
	return diff
}
