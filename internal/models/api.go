// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// APIResponse is the standard envelope for every JSON response.
type APIResponse struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *APIError    `json:"error,omitempty"`
	Meta    *APIMetadata `json:"meta,omitempty"`
}

// APIError carries a machine code and a display-ready detail string.
type APIError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// APIMetadata carries request tracing and pagination hints.
type APIMetadata struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Page       int       `json:"page,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Total      int       `json:"total,omitempty"`
	TotalPages int       `json:"total_pages,omitempty"`
}

// ConsolidatedReport is the aggregate payload for report endpoints.
type ConsolidatedReport struct {
	AuditID             string               `json:"audit_id"`
	Platform            Platform             `json:"platform"`
	OverallScore        int                  `json:"overall_score"`
	Diagnosis           *Diagnosis           `json:"diagnosis,omitempty"`
	VideoAnalysis       *VideoAnalysis       `json:"video_analysis,omitempty"`
	Prediction          *ScoreBreakdown      `json:"performance_prediction,omitempty"`
	Blueprint           *BlueprintPayload    `json:"blueprint,omitempty"`
	PredictionVsActual  *OutcomeMetric       `json:"prediction_vs_actual,omitempty"`
	CalibrationSnapshot *CalibrationSnapshot `json:"calibration_confidence,omitempty"`
	OutcomeDrift        *OutcomeSummary      `json:"outcome_drift,omitempty"`
	BestEditedVariant   *DraftSnapshot       `json:"best_edited_variant,omitempty"`
	QuickActions        []QuickAction        `json:"quick_actions"`
	Recommendations     []string             `json:"recommendations"`
	GeneratedAt         time.Time            `json:"generated_at"`
}

// QuickAction is a parameterized follow-up link in a report.
type QuickAction struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Params JSONMap `json:"params,omitempty"`
}

// BulkJobResult is one URL's outcome inside a bulk enqueue response.
type BulkJobResult struct {
	SourceURL string `json:"source_url"`
	JobID     string `json:"job_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}
