// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package outcome

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/clipsight/clipsight/internal/models"
)

// Calibration thresholds.
const (
	hitThreshold   = 10.0 // |delta| <= 10 counts as a hit
	trendThreshold = 1.5  // mae half-to-half change that breaks "flat"
	biasThreshold  = 2.0  // |mean delta| that breaks "neutral"
)

// buildSnapshot computes the calibration summary from an outcome sample,
// newest first. Only rows with a calibration delta participate.
func buildSnapshot(userID string, platform models.Platform, outcomes []models.OutcomeMetric) *models.CalibrationSnapshot {
	var deltas []float64
	for _, o := range outcomes {
		if o.CalibrationDelta != nil {
			deltas = append(deltas, *o.CalibrationDelta)
		}
	}

	snapshot := &models.CalibrationSnapshot{
		UserID:          userID,
		Platform:        platform,
		SampleSize:      len(deltas),
		Trend:           models.TrendFlat,
		Confidence:      models.ConfidenceLow,
		Recommendations: []string{},
	}
	if len(deltas) == 0 {
		snapshot.Recommendations = []string{
			"Record outcomes for scored posts to start calibrating predictions",
		}
		return snapshot
	}

	hits := 0
	absSum := 0.0
	for _, d := range deltas {
		absSum += math.Abs(d)
		if math.Abs(d) <= hitThreshold {
			hits++
		}
	}
	snapshot.MeanAbsError = round2(absSum / float64(len(deltas)))
	snapshot.HitRate = round2(float64(hits) / float64(len(deltas)))
	snapshot.Trend = classifyTrend(deltas)
	snapshot.Confidence = classifyConfidence(len(deltas), snapshot.MeanAbsError)
	snapshot.Recommendations = snapshotRecommendations(snapshot)
	return snapshot
}

// classifyTrend splits the deltas (newest first) in half and compares
// mean absolute error between the recent and older halves.
func classifyTrend(deltas []float64) models.CalibrationTrend {
	if len(deltas) < 4 {
		return models.TrendFlat
	}
	mid := len(deltas) / 2
	recent := meanAbs(deltas[:mid])
	older := meanAbs(deltas[mid:])
	switch {
	case recent < older-trendThreshold:
		return models.TrendImproving
	case recent > older+trendThreshold:
		return models.TrendDrifting
	default:
		return models.TrendFlat
	}
}

func meanAbs(deltas []float64) float64 {
	sum := 0.0
	for _, d := range deltas {
		sum += math.Abs(d)
	}
	return sum / float64(len(deltas))
}

// classifyConfidence grades the snapshot by sample size and accuracy.
func classifyConfidence(n int, mae float64) models.Confidence {
	switch {
	case n >= 20 && mae <= 10:
		return models.ConfidenceHigh
	case n >= 8 && mae <= 16:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func snapshotRecommendations(s *models.CalibrationSnapshot) []string {
	var recs []string
	if s.SampleSize < 8 {
		recs = append(recs, fmt.Sprintf("Record %d more outcomes to reach a medium-confidence baseline", 8-s.SampleSize))
	}
	if s.MeanAbsError > 16 {
		recs = append(recs, "Predictions are far off actuals; double-check the metrics you enter at ingest")
	}
	if s.Trend == models.TrendDrifting {
		recs = append(recs, "Accuracy is degrading; recent posts may differ in format from the scored scripts")
	}
	if s.HitRate >= 0.7 && s.SampleSize >= 8 {
		recs = append(recs, "Calibration is holding; keep recording outcomes after each post")
	}
	if len(recs) == 0 {
		recs = append(recs, "Keep recording outcomes to tighten the prediction baseline")
	}
	return recs
}

// driftWindows aggregates signed deltas over the last 7 and 30 days.
func (s *Service) driftWindows(ctx context.Context, userID string, platform models.Platform) (models.DriftWindows, error) {
	now := time.Now().UTC()
	d30, err := s.store.OutcomeMetricsSince(ctx, userID, platform, now.AddDate(0, 0, -30))
	if err != nil {
		return models.DriftWindows{}, err
	}

	cutoff7 := now.AddDate(0, 0, -7)
	var d7 []models.OutcomeMetric
	for _, o := range d30 {
		if !o.PostedAt.Before(cutoff7) {
			d7 = append(d7, o)
		}
	}
	return models.DriftWindows{
		D7:  buildWindow(d7),
		D30: buildWindow(d30),
	}, nil
}

func buildWindow(outcomes []models.OutcomeMetric) models.DriftWindow {
	w := models.DriftWindow{Bias: models.BiasNeutral}
	sum := 0.0
	absSum := 0.0
	for _, o := range outcomes {
		if o.CalibrationDelta == nil {
			continue
		}
		w.Count++
		sum += *o.CalibrationDelta
		absSum += math.Abs(*o.CalibrationDelta)
	}
	if w.Count == 0 {
		return w
	}
	w.MeanDelta = round2(sum / float64(w.Count))
	w.MeanAbsError = round2(absSum / float64(w.Count))
	switch {
	case w.MeanDelta >= biasThreshold:
		w.Bias = models.BiasUnderpredicting
	case w.MeanDelta <= -biasThreshold:
		w.Bias = models.BiasOverpredicting
	}
	return w
}

// nextActions derives the coaching strings shown with the summary.
func nextActions(snapshot *models.CalibrationSnapshot, drift models.DriftWindows) []string {
	var actions []string
	if snapshot == nil || snapshot.SampleSize == 0 {
		return []string{"Publish a scored script and record its real metrics to start the feedback loop"}
	}
	switch drift.D7.Bias {
	case models.BiasUnderpredicting:
		actions = append(actions, "Recent posts beat their predictions; trust higher-scored scripts more aggressively")
	case models.BiasOverpredicting:
		actions = append(actions, "Recent posts underperform their predictions; tighten hooks before publishing")
	}
	if snapshot.Confidence == models.ConfidenceLow {
		actions = append(actions, "Record more outcomes to raise calibration confidence")
	}
	if len(actions) == 0 {
		actions = append(actions, "Calibration is stable; keep the ingest habit after every post")
	}
	return actions
}
