// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// ActualMetrics are the observed post metrics fed into outcome ingest.
type ActualMetrics struct {
	Views         int64   `json:"views"`
	Likes         int64   `json:"likes"`
	Comments      int64   `json:"comments"`
	Shares        int64   `json:"shares"`
	Saves         int64   `json:"saves"`
	AvgWatchTimeS float64 `json:"avg_watch_time_s,omitempty"`
	AvgViewDurS   float64 `json:"avg_view_duration_s,omitempty"`
}

// OutcomeMetric is one (predicted, actual) observation. Immutable once
// written; CalibrationDelta is null whenever PredictedScore is.
type OutcomeMetric struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	Platform         Platform      `json:"platform"`
	ContentItemID    string        `json:"content_item_id,omitempty"`
	DraftSnapshotID  string        `json:"draft_snapshot_id,omitempty"`
	ReportID         string        `json:"report_id,omitempty"`
	VideoExternalID  string        `json:"video_external_id,omitempty"`
	PostedAt         time.Time     `json:"posted_at"`
	ActualMetrics    ActualMetrics `json:"actual_metrics"`
	RetentionPoints  []float64     `json:"retention_points,omitempty"`
	PredictedScore   *float64      `json:"predicted_score,omitempty"`
	ActualScore      float64       `json:"actual_score"`
	CalibrationDelta *float64      `json:"calibration_delta,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// CalibrationTrend classifies drift direction between delta halves.
type CalibrationTrend string

const (
	TrendImproving CalibrationTrend = "improving"
	TrendFlat      CalibrationTrend = "flat"
	TrendDrifting  CalibrationTrend = "drifting"
)

// CalibrationSnapshot is the rolling accuracy summary, unique per
// (user, platform). A pure function of the outcome set; rebuildable.
type CalibrationSnapshot struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	Platform        Platform         `json:"platform"`
	SampleSize      int              `json:"sample_size"`
	MeanAbsError    float64          `json:"mean_abs_error"`
	HitRate         float64          `json:"hit_rate"`
	Trend           CalibrationTrend `json:"trend"`
	Confidence      Confidence       `json:"confidence"`
	Recommendations []string         `json:"recommendations"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// DriftBias classifies signed prediction error over a window.
type DriftBias string

const (
	BiasUnderpredicting DriftBias = "underpredicting"
	BiasOverpredicting  DriftBias = "overpredicting"
	BiasNeutral         DriftBias = "neutral"
)

// DriftWindow aggregates deltas over posts newer than N days.
type DriftWindow struct {
	Count        int       `json:"count"`
	MeanDelta    float64   `json:"mean_delta"`
	MeanAbsError float64   `json:"mean_abs_error"`
	Bias         DriftBias `json:"bias"`
}

// DriftWindows holds the 7- and 30-day windows.
type DriftWindows struct {
	D7  DriftWindow `json:"d7"`
	D30 DriftWindow `json:"d30"`
}

// OutcomeSummary is the calibration view returned per platform.
type OutcomeSummary struct {
	Snapshot       *CalibrationSnapshot `json:"snapshot,omitempty"`
	DriftWindows   DriftWindows         `json:"drift_windows"`
	NextActions    []string             `json:"next_actions"`
	RecentOutcomes []OutcomeMetric      `json:"recent_outcomes"`
}

// RecalibrateResult reports a bulk snapshot refresh.
type RecalibrateResult struct {
	Refreshed int      `json:"refreshed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}
