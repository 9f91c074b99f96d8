// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package optimizer

import (
	"math"
	"strings"

	"github.com/clipsight/clipsight/internal/models"
)

// simulatedAnalysis is the multimodal-style analysis derived from a script
// without any model call.
type simulatedAnalysis struct {
	HookScore      float64 // 0..100
	BodyScore      float64 // 0..100
	CTAScore       float64 // 0..100
	OverallScore   float64 // 0..100
	OverallScore10 float64
	Sections       []models.AnalysisSection
}

var hookClaimWords = []string{"how", "why", "secret", "mistake", "stop", "boost", "grow"}

var hookProofPhrases = []string{"i tested", "i grew", "we tried", "proof", "results"}

var ctaDirectWords = []string{"comment", "save", "share", "follow", "subscribe"}

var ctaIndirectWords = []string{"link", "bio", "description"}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// simulateAnalysis scores the hook, body, and CTA of a script transcript.
func simulateAnalysis(tr Transcript, durationS float64) simulatedAnalysis {
	lower := strings.ToLower(tr.Text)
	firstLine := ""
	if len(tr.Segments) > 0 {
		firstLine = strings.ToLower(tr.Segments[0].Text)
	}

	hook := 58.0
	if containsAny(firstLine, hookClaimWords) {
		hook += 12
	}
	if containsAny(lower, hookProofPhrases) {
		hook += 14
	}
	if containsDigit(tr.Text) {
		hook += 6
	}
	hook = clip(hook, 0, 100)

	lineCount := len(tr.Segments)
	if lineCount == 0 {
		lineCount = 1
	}
	totalTokens := tokenCount(tr.Text)
	avgLineTokens := float64(totalTokens) / float64(lineCount)
	cadence := float64(lineCount) / math.Max(durationS/15, 1)
	body := 50 + math.Min(avgLineTokens/2.5, 22) + math.Min(cadence*8, 18)
	body = clip(body, 0, 100)

	var cta float64
	switch {
	case containsAny(lower, ctaDirectWords):
		cta = 82
	case containsAny(lower, ctaIndirectWords):
		cta = 74
	default:
		cta = 42
	}

	overall := 0.45*hook + 0.35*body + 0.20*cta

	return simulatedAnalysis{
		HookScore:      hook,
		BodyScore:      body,
		CTAScore:       cta,
		OverallScore:   overall,
		OverallScore10: round2(overall / 10),
		Sections: []models.AnalysisSection{
			{Name: "Hook", Score: round2(hook / 10)},
			{Name: "Body/Pacing", Score: round2(body / 10)},
			{Name: "CTA", Score: round2(cta / 10)},
		},
	}
}
