// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package optimizer

import (
	"testing"

	"github.com/clipsight/clipsight/internal/models"
)

func TestSplitScriptLinesPrefersNewlines(t *testing.T) {
	lines := splitScriptLines("First line.\nSecond line.\n\nThird line.")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	if lines[2] != "Third line." {
		t.Errorf("unexpected line %q", lines[2])
	}
}

func TestSplitScriptLinesSentenceFallback(t *testing.T) {
	lines := splitScriptLines("First sentence. Second one? And a third!")
	if len(lines) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %v", len(lines), lines)
	}
	if lines[1] != "Second one?" {
		t.Errorf("unexpected sentence %q", lines[1])
	}
}

func TestSynthesizeTranscriptDistributesDuration(t *testing.T) {
	tr := synthesizeTranscript("one two three four\nfive six\nseven", 30)
	if len(tr.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(tr.Segments))
	}

	for i, seg := range tr.Segments {
		if seg.End-seg.Start < minSegmentDuration {
			t.Errorf("segment %d shorter than floor: %f", i, seg.End-seg.Start)
		}
		if i > 0 && seg.Start != tr.Segments[i-1].End {
			t.Errorf("segment %d does not start at previous end", i)
		}
	}
	// The 4-token line gets the largest share.
	first := tr.Segments[0].End - tr.Segments[0].Start
	second := tr.Segments[1].End - tr.Segments[1].Start
	if first <= second {
		t.Errorf("longer line got smaller share: %f vs %f", first, second)
	}
}

func TestSimulateAnalysisScoresInRange(t *testing.T) {
	tr := synthesizeTranscript("How I grew 10k followers.\nI tested this for 30 days.\nComment below for the template.", 30)
	analysis := simulateAnalysis(tr, 30)

	for name, score := range map[string]float64{
		"hook":    analysis.HookScore,
		"body":    analysis.BodyScore,
		"cta":     analysis.CTAScore,
		"overall": analysis.OverallScore,
	} {
		if score < 0 || score > 100 {
			t.Errorf("%s score out of range: %f", name, score)
		}
	}
	if analysis.CTAScore != 82 {
		t.Errorf("direct CTA should score 82, got %f", analysis.CTAScore)
	}
	if len(analysis.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(analysis.Sections))
	}
	if analysis.Sections[0].Name != "Hook" {
		t.Errorf("first section is %q", analysis.Sections[0].Name)
	}
}

func TestDetectorsCoverAllKeysWithGaps(t *testing.T) {
	tr := synthesizeTranscript("A long rambling intro with nothing concrete at all.\nStill no payoff here either.", 60)
	analysis := simulateAnalysis(tr, 60)
	detectors := runDetectors(tr, analysis, 60, models.FormatShort)

	if len(detectors) != 5 {
		t.Fatalf("expected 5 detectors, got %d", len(detectors))
	}
	for _, d := range detectors {
		if d.Score < 0 || d.Score > 100 {
			t.Errorf("%s score out of range: %f", d.Key, d.Score)
		}
		if d.Gap < 0 {
			t.Errorf("%s has negative gap %f", d.Key, d.Gap)
		}
		if d.Weight <= 0 {
			t.Errorf("%s has no weight", d.Key)
		}
		if len(d.Evidence) == 0 || len(d.Edits) == 0 {
			t.Errorf("%s is missing evidence or edits", d.Key)
		}
	}
}

func TestDeadZoneDetectionPenalizesGaps(t *testing.T) {
	gappy := Transcript{
		Text: "start end",
		Segments: []Segment{
			{Start: 0, End: 2, Text: "start"},
			{Start: 10, End: 12, Text: "end"},
		},
	}
	tight := Transcript{
		Text: "start end",
		Segments: []Segment{
			{Start: 0, End: 2, Text: "start"},
			{Start: 2, End: 4, Text: "end"},
		},
	}

	if g, t2 := detectDeadZones(gappy).Score, detectDeadZones(tight).Score; g >= t2 {
		t.Errorf("gappy transcript scored %f, tight scored %f", g, t2)
	}
}
