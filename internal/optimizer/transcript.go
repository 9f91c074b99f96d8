// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package optimizer implements the deterministic detector-based scoring
// engine: script evaluation, variant generation, rescoring, and draft
// snapshots. Every result is a pure function of its inputs so fallback
// paths stay test-reproducible.
package optimizer

import (
	"strings"
)

// minSegmentDuration is the floor for a synthetic segment, in seconds.
const minSegmentDuration = 1.5

// Segment is one timed span of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is a script rendered as timed segments.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// TranscriptFromText builds a timed transcript from plain text by
// distributing the duration across its lines. Used when a transcription
// provider returns text without segment timings.
func TranscriptFromText(text string, durationS float64) Transcript {
	return synthesizeTranscript(text, durationS)
}

// splitScriptLines splits a script into lines, preferring newlines and
// falling back to sentence boundaries.
func splitScriptLines(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) > 1 {
		return lines
	}

	// Sentence split on . ? !
	var sentences []string
	var b strings.Builder
	for _, r := range strings.TrimSpace(script) {
		b.WriteRune(r)
		if r == '.' || r == '?' || r == '!' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	if len(sentences) == 0 && len(lines) == 1 {
		return lines
	}
	return sentences
}

// tokenCount counts whitespace-separated tokens.
func tokenCount(s string) int {
	return len(strings.Fields(s))
}

// synthesizeTranscript distributes durationS across the script's lines
// proportionally to token count, with a per-segment floor.
func synthesizeTranscript(script string, durationS float64) Transcript {
	lines := splitScriptLines(script)
	if len(lines) == 0 {
		return Transcript{Text: strings.TrimSpace(script)}
	}

	totalTokens := 0
	for _, line := range lines {
		totalTokens += tokenCount(line)
	}
	if totalTokens == 0 {
		totalTokens = 1
	}

	segments := make([]Segment, 0, len(lines))
	cursor := 0.0
	for _, line := range lines {
		share := float64(tokenCount(line)) / float64(totalTokens)
		dur := durationS * share
		if dur < minSegmentDuration {
			dur = minSegmentDuration
		}
		segments = append(segments, Segment{
			Start: cursor,
			End:   cursor + dur,
			Text:  line,
		})
		cursor += dur
	}

	return Transcript{
		Text:     strings.Join(lines, " "),
		Segments: segments,
	}
}
