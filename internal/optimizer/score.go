// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package optimizer

import (
	"github.com/clipsight/clipsight/internal/models"
)

// TrueMetrics are optional real-world signals supplied alongside a script.
// When present they substitute the proxy components of the platform score.
type TrueMetrics struct {
	RetentionPoints []float64 `json:"retention_points,omitempty"`
	Shares          *int64    `json:"shares,omitempty"`
	Saves           *int64    `json:"saves,omitempty"`
	Views           *int64    `json:"views,omitempty"`
}

// platformScore mixes the multimodal overall with the detector-weighted
// score and section strengths. True retention and interaction metrics, when
// supplied, replace their proxy components and flip metric_coverage.
func platformScore(analysis simulatedAnalysis, detectors []models.DetectorResult, metrics *TrueMetrics) models.PlatformMetrics {
	hookStrength := analysis.HookScore
	pacingStrength := analysis.BodyScore
	detectorWeighted := detectorWeightedScore(detectors)

	coverage := map[string]string{
		"retention":   "proxy",
		"interaction": "proxy",
	}

	score := 0.35*analysis.OverallScore + 0.40*detectorWeighted +
		0.15*hookStrength + 0.10*pacingStrength

	if metrics != nil && len(metrics.RetentionPoints) > 0 {
		sum := 0.0
		for _, p := range metrics.RetentionPoints {
			sum += p
		}
		meanRetention := clip(sum/float64(len(metrics.RetentionPoints)), 0, 100)
		score = 0.75*score + 0.25*meanRetention
		coverage["retention"] = "true"
	}
	if metrics != nil && (metrics.Shares != nil || metrics.Saves != nil) {
		var amplification int64
		if metrics.Shares != nil {
			amplification += *metrics.Shares
		}
		if metrics.Saves != nil {
			amplification += *metrics.Saves
		}
		if amplification > 0 {
			score += clip(float64(amplification)/10, 0, 6)
		}
		coverage["interaction"] = "true"
	}

	return models.PlatformMetrics{
		Score:                 round2(clip(score, 0, 100)),
		OverallMultimodal:     round2(analysis.OverallScore),
		DetectorWeightedScore: detectorWeighted,
		HookStrength:          round2(hookStrength),
		PacingStrength:        round2(pacingStrength),
		MetricCoverage:        coverage,
	}
}

// benchmarkConfidence grades a competitor sample size.
func benchmarkConfidence(sampleSize int) models.Confidence {
	switch {
	case sampleSize >= 20:
		return models.ConfidenceHigh
	case sampleSize >= 8:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// competitorBenchmark scores the script against the user's competitor
// videos of the same format. Without data it synthesizes a neutral 55.
func competitorBenchmark(videos []models.CompetitorVideo, format models.FormatType, platformScore float64) models.CompetitorMetrics {
	var matched []models.CompetitorVideo
	for _, v := range videos {
		if models.FormatFor(v.DurationS) == format {
			matched = append(matched, v)
		}
	}

	if len(matched) == 0 {
		return models.CompetitorMetrics{
			Score:      55,
			HasData:    false,
			SampleSize: 0,
			Confidence: models.ConfidenceLow,
		}
	}

	var totalViews, totalLikes, totalComments, totalShares, totalSaves int64
	for _, v := range matched {
		totalViews += v.Metrics.Views
		totalLikes += v.Metrics.Likes
		totalComments += v.Metrics.Comments
		totalShares += v.Metrics.Shares
		totalSaves += v.Metrics.Saves
	}
	n := float64(len(matched))
	avgViews := float64(totalViews) / n

	var likeRate, commentRate, engagementRate float64
	if totalViews > 0 {
		likeRate = float64(totalLikes) / float64(totalViews)
		commentRate = float64(totalComments) / float64(totalViews)
		engagementRate = float64(totalLikes+totalComments+totalShares+totalSaves) / float64(totalViews)
	}

	// Higher competitor engagement means a harder pack to beat.
	difficulty := clip(40+engagementRate*600, 0, 100)
	score := clip(50+(platformScore-difficulty)*0.5, 0, 100)

	return models.CompetitorMetrics{
		Score:           round2(score),
		HasData:         true,
		SampleSize:      len(matched),
		AvgViews:        round2(avgViews),
		LikeRate:        round2(likeRate * 100),
		CommentRate:     round2(commentRate * 100),
		EngagementRate:  round2(engagementRate * 100),
		DifficultyScore: round2(difficulty),
		Confidence:      benchmarkConfidence(len(matched)),
	}
}

// historicalBaseline is the user's rolling mean actual score. Outcomes do
// not carry a format, so the cross-format fallback is always in effect.
func historicalBaseline(outcomes []models.OutcomeMetric) models.HistoricalMetrics {
	matched := outcomes

	if len(matched) < 5 {
		return models.HistoricalMetrics{
			Score:            0,
			SampleSize:       len(matched),
			InsufficientData: true,
			Confidence:       models.ConfidenceLow,
		}
	}

	sum := 0.0
	for _, o := range matched {
		sum += o.ActualScore
	}
	confidence := models.ConfidenceMedium
	if len(matched) >= 20 {
		confidence = models.ConfidenceHigh
	}
	return models.HistoricalMetrics{
		Score:      round2(sum / float64(len(matched))),
		SampleSize: len(matched),
		Confidence: confidence,
	}
}

// combineScores mixes the three components. Historical readiness shifts
// the weights and caps confidence at medium when absent.
func combineScores(platform models.PlatformMetrics, competitor models.CompetitorMetrics, historical models.HistoricalMetrics) models.CombinedMetrics {
	historicalReady := !historical.InsufficientData

	var weights map[string]float64
	if historicalReady {
		weights = map[string]float64{"competitor": 0.45, "platform": 0.35, "historical": 0.20}
	} else {
		weights = map[string]float64{"competitor": 0.55, "platform": 0.45, "historical": 0.00}
	}

	combined := clip(weights["competitor"]*competitor.Score+
		weights["platform"]*platform.Score+
		weights["historical"]*historical.Score, 0, 100)

	confidence := models.MinConfidence(competitor.Confidence, historical.Confidence)
	if !historicalReady {
		confidence = models.MinConfidence(competitor.Confidence, models.ConfidenceMedium)
	}

	return models.CombinedMetrics{
		Score:      round2(combined),
		Weights:    weights,
		Confidence: confidence,
	}
}
