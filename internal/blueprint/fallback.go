// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package blueprint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clipsight/clipsight/internal/models"
)

// stopWords are excluded from pillar keyword extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "with": true, "how": true,
	"why": true, "what": true, "this": true, "that": true, "you": true,
	"your": true, "i": true, "my": true, "is": true, "are": true, "it": true,
}

// fallbackPayload builds a deterministic blueprint from the stored
// competitor corpus. Serves refreshes without an LLM provider and
// failures without a cached payload.
func fallbackPayload(platform models.Platform, videos []models.CompetitorVideo) *models.BlueprintPayload {
	sorted := make([]models.CompetitorVideo, len(videos))
	copy(sorted, videos)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Metrics.Views != sorted[j].Metrics.Views {
			return sorted[i].Metrics.Views > sorted[j].Metrics.Views
		}
		return sorted[i].ExternalID < sorted[j].ExternalID
	})

	payload := &models.BlueprintPayload{
		Platform:       platform,
		GapAnalysis:    gapAnalysis(sorted),
		ContentPillars: topKeywords(sorted, 5),
		VideoIdeas:     videoIdeas(sorted),
		HookIntelligence: models.JSONMap{
			"dominant_patterns": []string{"outcome_first", "direct_question", "bold_claim"},
			"guidance":          "Lead with the result or a question the viewer already has.",
		},
		WinnerPatternSignals: winnerSignals(sorted),
		FrameworkPlaybook: models.JSONMap{
			"structure": []string{"hook", "context", "payoff", "cta"},
			"guidance":  "One idea per beat; surface the payoff before the midpoint.",
		},
		RepurposePlan: models.JSONMap{
			"strategy": "Clip the strongest beat into a short with a rewritten first line.",
			"cadence":  "2-3 derivatives per source video",
		},
		VelocityActions: []string{
			"Post consistently within your top-performing duration band.",
			"Rehook underperformers instead of producing net-new topics.",
		},
		DatasetSummary: datasetSummary(sorted),
	}
	return normalizePayload(payload, platform)
}

func gapAnalysis(videos []models.CompetitorVideo) []string {
	if len(videos) == 0 {
		return []string{"No competitor corpus yet; add competitors to unlock gap analysis."}
	}
	gaps := []string{
		fmt.Sprintf("Competitors publish %d benchmarked videos; match their top duration band.", len(videos)),
	}
	if top := videos[0]; top.Title != "" {
		gaps = append(gaps, fmt.Sprintf("Highest performer covers %q; no comparable coverage found in your corpus.", top.Title))
	}
	return gaps
}

// topKeywords extracts the most frequent non-stopword title tokens, ties
// broken alphabetically for determinism.
func topKeywords(videos []models.CompetitorVideo, limit int) []string {
	counts := make(map[string]int)
	for _, v := range videos {
		for _, tok := range strings.Fields(strings.ToLower(v.Title)) {
			tok = strings.Trim(tok, ".,!?:;\"'()[]")
			if len(tok) < 3 || stopWords[tok] {
				continue
			}
			counts[tok]++
		}
	}
	if len(counts) == 0 {
		return []string{"education", "storytelling", "tutorials"}
	}

	keywords := make([]string, 0, len(counts))
	for k := range counts {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func videoIdeas(videos []models.CompetitorVideo) []models.JSONMap {
	ideas := make([]models.JSONMap, 0, 3)
	for i, v := range videos {
		if i >= 3 || v.Title == "" {
			break
		}
		ideas = append(ideas, models.JSONMap{
			"title_seed": fmt.Sprintf("Your take on: %s", v.Title),
			"rationale":  fmt.Sprintf("Benchmarked at %d views on a tracked competitor.", v.Metrics.Views),
			"source_id":  v.ExternalID,
		})
	}
	if len(ideas) == 0 {
		ideas = append(ideas, models.JSONMap{
			"title_seed": "Document one workflow your audience asks about most.",
			"rationale":  "Default idea; no competitor corpus available yet.",
		})
	}
	return ideas
}

func winnerSignals(videos []models.CompetitorVideo) models.JSONMap {
	var shortCount, longCount int
	for _, v := range videos {
		if models.FormatFor(v.DurationS) == models.FormatShort {
			shortCount++
		} else {
			longCount++
		}
	}
	dominant := "short_form"
	if longCount > shortCount {
		dominant = "long_form"
	}
	return models.JSONMap{
		"dominant_format":  dominant,
		"short_form_count": shortCount,
		"long_form_count":  longCount,
	}
}

func datasetSummary(videos []models.CompetitorVideo) models.JSONMap {
	var totalViews int64
	for _, v := range videos {
		totalViews += v.Metrics.Views
	}
	avg := int64(0)
	if len(videos) > 0 {
		avg = totalViews / int64(len(videos))
	}
	return models.JSONMap{
		"video_count": len(videos),
		"total_views": totalViews,
		"avg_views":   avg,
	}
}

// normalizePayload guarantees a deterministic shape: platform set and
// every required field non-nil.
func normalizePayload(p *models.BlueprintPayload, platform models.Platform) *models.BlueprintPayload {
	if p == nil {
		p = &models.BlueprintPayload{}
	}
	if p.Platform == "" {
		p.Platform = platform
	}
	if p.GapAnalysis == nil {
		p.GapAnalysis = []string{}
	}
	if p.ContentPillars == nil {
		p.ContentPillars = []string{}
	}
	if p.VideoIdeas == nil {
		p.VideoIdeas = []models.JSONMap{}
	}
	if p.HookIntelligence == nil {
		p.HookIntelligence = models.JSONMap{}
	}
	if p.WinnerPatternSignals == nil {
		p.WinnerPatternSignals = models.JSONMap{}
	}
	if p.FrameworkPlaybook == nil {
		p.FrameworkPlaybook = models.JSONMap{}
	}
	if p.RepurposePlan == nil {
		p.RepurposePlan = models.JSONMap{}
	}
	return p
}
