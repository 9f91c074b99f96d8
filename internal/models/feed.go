// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// FollowMode selects how a stored discovery query matches items.
type FollowMode string

const (
	FollowProfile FollowMode = "profile"
	FollowHashtag FollowMode = "hashtag"
	FollowKeyword FollowMode = "keyword"
	FollowAudio   FollowMode = "audio"
)

// Valid reports whether the mode is a supported value.
func (m FollowMode) Valid() bool {
	switch m {
	case FollowProfile, FollowHashtag, FollowKeyword, FollowAudio:
		return true
	}
	return false
}

// FeedSourceFollow is a stored discovery query with a run cadence.
// Invariant: active follows always carry NextRunAt; inactive never do.
type FeedSourceFollow struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Platform       Platform   `json:"platform"`
	Mode           FollowMode `json:"mode"`
	Query          string     `json:"query"`
	Timeframe      string     `json:"timeframe"`
	SortBy         string     `json:"sort_by"`
	SortDirection  string     `json:"sort_direction"`
	Limit          int        `json:"limit"`
	CadenceMinutes int        `json:"cadence_minutes"` // clamped to [15, 1440]
	IsActive       bool       `json:"is_active"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IngestRunStatus is the lifecycle of one auto-ingest execution.
type IngestRunStatus string

const (
	IngestRunning   IngestRunStatus = "running"
	IngestCompleted IngestRunStatus = "completed"
	IngestFailed    IngestRunStatus = "failed"
)

// FeedAutoIngestRun is an append-only record of one follow execution.
type FeedAutoIngestRun struct {
	ID           string          `json:"id"`
	FollowID     string          `json:"follow_id"`
	UserID       string          `json:"user_id"`
	Status       IngestRunStatus `json:"status"`
	ItemCount    int             `json:"item_count"`
	ItemIDs      []string        `json:"item_ids"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// RepostStatus is the free-form status set for repost packages.
type RepostStatus string

const (
	RepostDraft     RepostStatus = "draft"
	RepostScheduled RepostStatus = "scheduled"
	RepostPublished RepostStatus = "published"
	RepostArchived  RepostStatus = "archived"
)

// Valid reports whether the status is in the allowed set. Transitions
// within the set are free-form.
func (s RepostStatus) Valid() bool {
	switch s {
	case RepostDraft, RepostScheduled, RepostPublished, RepostArchived:
		return true
	}
	return false
}

// RepostHook is one of the three deterministic hook variants.
type RepostHook struct {
	StyleKey string `json:"style_key"` // outcome_proof, curiosity_gap, contrarian_take
	Text     string `json:"text"`
}

// RepostTarget is the per-platform sub-package of a repost plan.
type RepostTarget struct {
	Platform        Platform `json:"platform"`
	DurationTargetS int      `json:"duration_target_s"`
	HookDeadlineS   int      `json:"hook_deadline_s"`
	FirstFrameText  string   `json:"first_frame_text"`
	Caption         string   `json:"caption"`
	CTALine         string   `json:"cta_line"`
	Hashtags        []string `json:"hashtags"`
	EditDirectives  []string `json:"edit_directives"`
}

// RepostPlan is the structured payload of a repost package.
type RepostPlan struct {
	Hooks   []RepostHook              `json:"hooks"`
	Targets map[Platform]RepostTarget `json:"targets"`
}

// FeedRepostPackage is a synthesized repost plan for a research item.
type FeedRepostPackage struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	SourceItemID    string       `json:"source_item_id"`
	Status          RepostStatus `json:"status"`
	TargetPlatforms []Platform   `json:"target_platforms"`
	Package         RepostPlan   `json:"package"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// FeedTelemetryEvent is an append-only funnel-analytics record. Writes
// must never break the primary workflow.
type FeedTelemetryEvent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	EventName    string    `json:"event_name"`
	Status       string    `json:"status"`
	Platform     Platform  `json:"platform,omitempty"`
	SourceItemID string    `json:"source_item_id,omitempty"`
	Details      JSONMap   `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DiscoveredItem is a research item projected with discovery scoring.
type DiscoveredItem struct {
	ResearchItem
	EngagementRate float64 `json:"engagement_rate"`
	ViewsPerHour   float64 `json:"views_per_hour"`
	TrendingScore  float64 `json:"trending_score"`
}

// LoopStageCompletion marks which of the five loop stages an item has passed.
type LoopStageCompletion struct {
	Discovered bool `json:"discovered"`
	Packaged   bool `json:"packaged"`
	Scripted   bool `json:"scripted"`
	Audited    bool `json:"audited"`
	Reported   bool `json:"reported"`
}

// LoopSummary is the per-item pipeline summary.
type LoopSummary struct {
	SourceItem          *ResearchItem       `json:"source_item"`
	LatestRepostPackage *FeedRepostPackage  `json:"latest_repost_package,omitempty"`
	LatestDraftSnapshot *DraftSnapshot      `json:"latest_draft_snapshot,omitempty"`
	LatestAudit         *Audit              `json:"latest_audit,omitempty"`
	StageCompletion     LoopStageCompletion `json:"stage_completion"`
	NextStep            string              `json:"next_step"`
}

// TelemetryFunnel is the stage-conversion view of recent telemetry.
type TelemetryFunnel struct {
	Discovered        int     `json:"discovered"`
	Packaged          int     `json:"packaged"`
	Scripted          int     `json:"scripted"`
	Audited           int     `json:"audited"`
	Reported          int     `json:"reported"`
	DiscoverToPackage float64 `json:"discover_to_package_pct"`
	PackageToScript   float64 `json:"package_to_script_pct"`
	ScriptToAudit     float64 `json:"script_to_audit_pct"`
	AuditToReport     float64 `json:"audit_to_report_pct"`
}

// TelemetrySummary aggregates event volume and the funnel over a window.
type TelemetrySummary struct {
	Days        int             `json:"days"`
	EventVolume TelemetryVolume `json:"event_volume"`
	Funnel      TelemetryFunnel `json:"funnel"`
}

// TelemetryVolume counts events by name and status.
type TelemetryVolume struct {
	Total      int            `json:"total"`
	ByEvent    map[string]int `json:"by_event"`
	ByStatus   map[string]int `json:"by_status"`
	ErrorCount int            `json:"error_count"`
}
