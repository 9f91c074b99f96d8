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

// Style strategies, fixed per style key.
var styleStrategies = map[string]string{
	models.StyleVariantA: "outcome+proof",
	models.StyleVariantB: "curiosity_gap",
	models.StyleVariantC: "contrarian",
}

// styleOrder is the canonical generation order.
var styleOrder = []string{models.StyleVariantA, models.StyleVariantB, models.StyleVariantC}

// platformDurationDefaults in seconds, applied when the request omits one.
var platformDurationDefaults = map[models.Platform]float64{
	models.PlatformYouTube:   45,
	models.PlatformInstagram: 35,
	models.PlatformTikTok:    30,
}

// resolveDuration applies the platform default and clamps to [15, 900].
func resolveDuration(req *models.VariantRequest) float64 {
	dur := req.DurationS
	if dur <= 0 {
		if d, ok := platformDurationDefaults[req.Platform]; ok {
			dur = d
		} else {
			dur = 45
		}
	}
	return clip(dur, 15, 900)
}

// fallbackStructure builds the deterministic template for one style.
func fallbackStructure(styleKey string, req *models.VariantRequest) models.VariantStructure {
	topic := strings.TrimSpace(req.Topic)
	audience := strings.TrimSpace(req.Audience)
	if audience == "" {
		audience = "your audience"
	}
	objective := strings.TrimSpace(req.Objective)
	if objective == "" {
		objective = "grow faster"
	}

	switch styleKey {
	case models.StyleVariantA:
		return models.VariantStructure{
			Hook:  fmt.Sprintf("I tested %s so you don't have to. Here are the results.", topic),
			Setup: fmt.Sprintf("Most advice on %s skips the proof. I ran it for 30 days.", topic),
			Value: fmt.Sprintf("Step 1: pick one angle. Step 2: post daily. Step 3: measure what %s actually responds to.", audience),
			CTA:   "Comment RESULTS and I'll share the full breakdown.",
		}
	case models.StyleVariantB:
		return models.VariantStructure{
			Hook:  fmt.Sprintf("There's one thing about %s nobody tells you.", topic),
			Setup: fmt.Sprintf("By the end of this you'll know why most attempts to %s stall out.", objective),
			Value: fmt.Sprintf("The gap is in the first three seconds. %s decides to stay or scroll before you finish your first sentence.", audience),
			CTA:   "Save this for your next post.",
		}
	default:
		return models.VariantStructure{
			Hook:  fmt.Sprintf("Stop following the standard advice on %s.", topic),
			Setup: "The popular playbook is exactly why it isn't working.",
			Value: fmt.Sprintf("Do the opposite: go narrower, post less, and make every video answer one question %s is already asking.", audience),
			CTA:   "Follow for the contrarian take on this every week.",
		}
	}
}

// renderScript joins a structure into newline-separated script text.
func renderScript(s models.VariantStructure) string {
	return strings.Join([]string{s.Hook, s.Setup, s.Value, s.CTA}, "\n")
}

// GeneratedVariant is one parsed style from the AI provider.
type GeneratedVariant struct {
	StyleKey  string                  `json:"style_key"`
	Structure models.VariantStructure `json:"structure"`
}

// assembleVariants applies the ai_first_fallback policy: every style from
// the provider output that is missing or malformed is replaced by its
// deterministic fallback.
func assembleVariants(req *models.VariantRequest, generated []GeneratedVariant, providerErr error) []models.ScriptVariant {
	byStyle := make(map[string]GeneratedVariant, len(generated))
	for _, g := range generated {
		if _, known := styleStrategies[g.StyleKey]; known {
			byStyle[g.StyleKey] = g
		}
	}

	variants := make([]models.ScriptVariant, 0, len(styleOrder))
	for _, styleKey := range styleOrder {
		v := models.ScriptVariant{
			StyleKey: styleKey,
			Strategy: styleStrategies[styleKey],
		}

		g, ok := byStyle[styleKey]
		switch {
		case providerErr != nil:
			v.Structure = fallbackStructure(styleKey, req)
			v.UsedFallback = true
			v.FallbackReason = providerErr.Error()
		case !ok || !structureComplete(g.Structure):
			v.Structure = fallbackStructure(styleKey, req)
			v.UsedFallback = true
			v.FallbackReason = "missing_" + styleKey
		default:
			v.Structure = g.Structure
		}
		v.ScriptText = renderScript(v.Structure)
		variants = append(variants, v)
	}
	return variants
}

func structureComplete(s models.VariantStructure) bool {
	return strings.TrimSpace(s.Hook) != "" &&
		strings.TrimSpace(s.Value) != "" &&
		strings.TrimSpace(s.CTA) != ""
}

// rankVariants sorts by combined descending, assigns ranks, and computes
// expected lift against the median (middle) combined score.
func rankVariants(variants []models.ScriptVariant) {
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].ScoreBreakdown.Combined > variants[j].ScoreBreakdown.Combined
	})

	median := 0.0
	if len(variants) > 0 {
		median = variants[len(variants)/2].ScoreBreakdown.Combined
	}
	for i := range variants {
		variants[i].Rank = i + 1
		variants[i].ExpectedLiftPoints = round2(clip(variants[i].ScoreBreakdown.Combined-median, 0, 100))
	}
}
