// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// SourceType records how a research item entered the corpus.
type SourceType string

const (
	SourceManualURL      SourceType = "manual_url"
	SourceBrowserCapture SourceType = "browser_capture"
	SourceCSVImport      SourceType = "csv_import"
)

// ItemMetrics holds the raw engagement counters for a research item.
type ItemMetrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Saves    int64 `json:"saves"`
}

// ResearchItem is the canonical cross-platform content record.
// Identity is immutable; only ingestion and loop-stage transitions mutate
// it, the latter by merging into MediaMeta.
type ResearchItem struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"user_id"`
	CollectionID       string      `json:"collection_id,omitempty"`
	Platform           Platform    `json:"platform"`
	SourceType         SourceType  `json:"source_type"`
	URL                string      `json:"url,omitempty"`
	ExternalID         string      `json:"external_id,omitempty"`
	CreatorHandle      string      `json:"creator_handle,omitempty"`
	CreatorDisplayName string      `json:"creator_display_name,omitempty"`
	Title              string      `json:"title,omitempty"`
	Caption            string      `json:"caption,omitempty"`
	Metrics            ItemMetrics `json:"metrics"`
	MediaMeta          JSONMap     `json:"media_meta"`
	PublishedAt        *time.Time  `json:"published_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

// MediaMeta keys written by loop-stage transitions and workers.
const (
	MetaTranscriptSource    = "transcript_source"
	MetaTranscriptText      = "transcript_text"
	MetaTranscriptUpdatedAt = "transcript_updated_at"
	MetaFavorite            = "favorite"
	MetaFeedDownloadJobID   = "feed_download_job_id"
	MetaPredictedScore      = "predicted_score"
	MetaLoopLastAuditID     = "loop_last_audit_id"
	MetaLoopLastAuditAt     = "loop_last_audit_at"
	MetaLoopLastVariantAt   = "loop_last_variant_batch_at"
	MetaLoopLastVariantN    = "loop_last_variant_count"
	MetaLoopReportedAuditID = "loop_reported_audit_id"
)

// ResearchCollection groups research items. Every user has one system
// "Default Collection" per platform family; an item belongs to at most one
// collection at a time.
type ResearchCollection struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Platform  Platform  `json:"platform"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemSearchFilters is the search surface over the research corpus.
type ItemSearchFilters struct {
	Platform      Platform `json:"platform,omitempty"`
	CollectionID  string   `json:"collection_id,omitempty"`
	Timeframe     string   `json:"timeframe,omitempty"` // 24h, 7d, 30d, 90d, all
	Query         string   `json:"query,omitempty"`
	SortBy        string   `json:"sort_by,omitempty"`
	SortDirection string   `json:"sort_direction,omitempty"`
	Page          int      `json:"page,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// ItemPage is a paginated item listing.
type ItemPage struct {
	Items      []ResearchItem `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// ResearchExport records a generated corpus export file.
type ResearchExport struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CollectionID string    `json:"collection_id,omitempty"`
	Format       string    `json:"format"` // csv or json
	FilePath     string    `json:"-"`
	FileName     string    `json:"file_name"`
	ItemCount    int       `json:"item_count"`
	CreatedAt    time.Time `json:"created_at"`
}
