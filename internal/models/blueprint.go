// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// Competitor is a tracked channel or creator used for benchmarking.
type Competitor struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Platform    Platform  `json:"platform"`
	ExternalID  string    `json:"external_id"`
	Handle      string    `json:"handle,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CompetitorVideo is one benchmarked competitor post.
type CompetitorVideo struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	CompetitorID string      `json:"competitor_id"`
	Platform     Platform    `json:"platform"`
	ExternalID   string      `json:"external_id"`
	Title        string      `json:"title,omitempty"`
	DurationS    float64     `json:"duration_s"`
	Metrics      ItemMetrics `json:"metrics"`
	PublishedAt  *time.Time  `json:"published_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// BlueprintPayload is the normalized competitor blueprint. Normalization
// guarantees every field is non-nil so downstream consumers can rely on
// presence.
type BlueprintPayload struct {
	Platform             Platform  `json:"platform"`
	GapAnalysis          []string  `json:"gap_analysis"`
	ContentPillars       []string  `json:"content_pillars"`
	VideoIdeas           []JSONMap `json:"video_ideas"`
	HookIntelligence     JSONMap   `json:"hook_intelligence"`
	WinnerPatternSignals JSONMap   `json:"winner_pattern_signals"`
	FrameworkPlaybook    JSONMap   `json:"framework_playbook"`
	RepurposePlan        JSONMap   `json:"repurpose_plan"`
	TranscriptQuality    JSONMap   `json:"transcript_quality,omitempty"`
	VelocityActions      []string  `json:"velocity_actions,omitempty"`
	SeriesIntelligence   JSONMap   `json:"series_intelligence,omitempty"`
	DatasetSummary       JSONMap   `json:"dataset_summary,omitempty"`
}

// BlueprintSnapshot is the single cached blueprint per user. Freshness is
// TTL plus competitor-signature equality plus payload platform equality.
type BlueprintSnapshot struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	Payload             *BlueprintPayload `json:"payload,omitempty"`
	CompetitorSignature string            `json:"competitor_signature"`
	GeneratedAt         time.Time         `json:"generated_at"`
	LastError           string            `json:"last_error,omitempty"`
}
