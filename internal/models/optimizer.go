// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// Detector keys. Each detector scores one scriptable weakness.
const (
	DetectorTimeToValue       = "time_to_value"
	DetectorOpenLoops         = "open_loops"
	DetectorDeadZones         = "dead_zones"
	DetectorPatternInterrupts = "pattern_interrupts"
	DetectorCTAStyle          = "cta_style"
)

// Variant style keys.
const (
	StyleVariantA = "variant_a" // outcome+proof
	StyleVariantB = "variant_b" // curiosity_gap
	StyleVariantC = "variant_c" // contrarian
)

// DetectorResult is one rule-based scorer's output.
type DetectorResult struct {
	Key         string   `json:"detector_key"`
	Score       float64  `json:"score"`        // 0..100
	TargetScore float64  `json:"target_score"` // per-detector target
	Gap         float64  `json:"gap"`          // max(0, target - score)
	Weight      float64  `json:"weight"`
	Evidence    []string `json:"evidence"`
	Edits       []string `json:"edits"`
}

// DetectorRanking is a detector result ordered by gap with a priority grade.
type DetectorRanking struct {
	DetectorResult
	Rank                int     `json:"rank"`
	Priority            string  `json:"priority"` // high, medium, low
	EstimatedLiftPoints float64 `json:"estimated_lift_points"`
}

// NextAction is a prescriptive step derived from a top-ranked detector.
type NextAction struct {
	Title              string   `json:"title"`
	DetectorKey        string   `json:"detector_key"`
	Priority           string   `json:"priority"`
	Why                string   `json:"why"`
	ExpectedLiftPoints float64  `json:"expected_lift_points"`
	ExecutionSteps     []string `json:"execution_steps"`
}

// LineEdit is one line-level rewrite suggestion.
type LineEdit struct {
	DetectorKey   string `json:"detector_key"`
	Priority      string `json:"priority"`
	LineNumber    int    `json:"line_number"` // 1-indexed
	OriginalLine  string `json:"original_line"`
	SuggestedLine string `json:"suggested_line"`
	Reason        string `json:"reason"`
}

// PlatformMetrics is the platform-fit component of a score breakdown.
// MetricCoverage values are "proxy" until true metrics substitute them.
type PlatformMetrics struct {
	Score                 float64           `json:"score"`
	OverallMultimodal     float64           `json:"overall_multimodal_score"`
	DetectorWeightedScore float64           `json:"detector_weighted_score"`
	HookStrength          float64           `json:"hook_strength"`
	PacingStrength        float64           `json:"pacing_strength"`
	MetricCoverage        map[string]string `json:"metric_coverage"`
}

// CompetitorMetrics is the competitor-benchmark component.
type CompetitorMetrics struct {
	Score           float64    `json:"score"`
	HasData         bool       `json:"has_data"`
	SampleSize      int        `json:"sample_size"`
	AvgViews        float64    `json:"avg_views"`
	LikeRate        float64    `json:"like_rate"`
	CommentRate     float64    `json:"comment_rate"`
	EngagementRate  float64    `json:"engagement_rate"`
	DifficultyScore float64    `json:"difficulty_score"`
	Confidence      Confidence `json:"confidence"`
}

// HistoricalMetrics is the user's own rolling-baseline component.
type HistoricalMetrics struct {
	Score            float64    `json:"score"`
	SampleSize       int        `json:"sample_size"`
	InsufficientData bool       `json:"insufficient_data"`
	Confidence       Confidence `json:"confidence"`
}

// CombinedMetrics is the final weighted mix.
type CombinedMetrics struct {
	Score      float64            `json:"score"`
	Weights    map[string]float64 `json:"weights"`
	Confidence Confidence         `json:"confidence"`
}

// ScoreBreakdown is the full scoring result for one script or video.
type ScoreBreakdown struct {
	PlatformMetrics   PlatformMetrics   `json:"platform_metrics"`
	CompetitorMetrics CompetitorMetrics `json:"competitor_metrics"`
	HistoricalMetrics HistoricalMetrics `json:"historical_metrics"`
	CombinedMetrics   CombinedMetrics   `json:"combined_metrics"`
	Combined          float64           `json:"combined"`
	FormatType        FormatType        `json:"format_type"`
	DurationSeconds   float64           `json:"duration_seconds"`

	// Platform and NextActions are set on audit predictions only.
	Platform    Platform     `json:"platform,omitempty"`
	NextActions []NextAction `json:"next_actions,omitempty"`
}

// VariantStructure is the closed-record shape of a generated script.
type VariantStructure struct {
	Hook  string `json:"hook"`
	Setup string `json:"setup"`
	Value string `json:"value"`
	CTA   string `json:"cta"`
}

// ScriptVariant is one of exactly three generated scripts in a batch.
type ScriptVariant struct {
	ID                 string           `json:"id"`
	StyleKey           string           `json:"style_key"`
	Strategy           string           `json:"strategy"`
	Structure          VariantStructure `json:"structure"`
	ScriptText         string           `json:"script_text"`
	ScoreBreakdown     ScoreBreakdown   `json:"score_breakdown"`
	Rank               int              `json:"rank"` // 1..3, by combined desc
	ExpectedLiftPoints float64          `json:"expected_lift_points"`
	UsedFallback       bool             `json:"used_fallback"`
	FallbackReason     string           `json:"fallback_reason,omitempty"`
}

// VariantBatch is a persisted generateVariants result. Variants are ordered
// by descending combined score; the first is selected by default.
type VariantBatch struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	SourceItemID      string          `json:"source_item_id,omitempty"`
	Platform          Platform        `json:"platform"`
	Topic             string          `json:"topic"`
	Request           JSONMap         `json:"request"`
	Variants          []ScriptVariant `json:"variants"`
	SelectedVariantID string          `json:"selected_variant_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// VariantRequest is the input to variant generation.
type VariantRequest struct {
	UserID       string   `json:"user_id,omitempty"`
	Platform     Platform `json:"platform" validate:"required,platform"`
	Topic        string   `json:"topic" validate:"required"`
	Audience     string   `json:"audience,omitempty"`
	Objective    string   `json:"objective,omitempty"`
	Tone         string   `json:"tone,omitempty"`
	DurationS    float64  `json:"duration_s,omitempty"`
	SourceItemID string   `json:"source_item_id,omitempty"`
}

// ImprovementDiff compares a rescore against its baseline.
type ImprovementDiff struct {
	Combined  ImprovementDelta   `json:"combined"`
	Detectors []DetectorDelta    `json:"detectors"`
	Weights   map[string]float64 `json:"weights,omitempty"`
}

// ImprovementDelta is a before/after pair for the combined score.
type ImprovementDelta struct {
	Before *float64 `json:"before,omitempty"`
	After  float64  `json:"after"`
	Delta  *float64 `json:"delta,omitempty"`
}

// DetectorDelta is a before/after pair for one detector.
type DetectorDelta struct {
	DetectorKey string   `json:"detector_key"`
	BeforeScore *float64 `json:"before_score,omitempty"`
	AfterScore  float64  `json:"after_score"`
	Delta       *float64 `json:"delta,omitempty"`
}

// RescoreResult is the rescore operation's payload.
type RescoreResult struct {
	ScoreBreakdown   ScoreBreakdown    `json:"score_breakdown"`
	DetectorRankings []DetectorRanking `json:"detector_rankings"`
	NextActions      []NextAction      `json:"next_actions"`
	LineLevelEdits   []LineEdit        `json:"line_level_edits"`
	ImprovementDiff  *ImprovementDiff  `json:"improvement_diff,omitempty"`
	Signals          JSONMap           `json:"signals"`
	FormatType       FormatType        `json:"format_type"`
	DurationSeconds  float64           `json:"duration_seconds"`
}

// DraftSnapshot persists a rescored edited script.
type DraftSnapshot struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	Platform         Platform          `json:"platform"`
	SourceItemID     string            `json:"source_item_id,omitempty"`
	VariantID        string            `json:"variant_id,omitempty"`
	ScriptText       string            `json:"script_text"`
	BaselineScore    *float64          `json:"baseline_score,omitempty"`
	RescoredScore    float64           `json:"rescored_score"`
	DeltaScore       *float64          `json:"delta_score,omitempty"`
	DetectorRankings []DetectorRanking `json:"detector_rankings"`
	NextActions      []NextAction      `json:"next_actions"`
	LineLevelEdits   []LineEdit        `json:"line_level_edits"`
	CreatedAt        time.Time         `json:"created_at"`
}
