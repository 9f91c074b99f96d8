// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// MediaJobStatus is the media download job lifecycle.
type MediaJobStatus string

const (
	MediaJobQueued      MediaJobStatus = "queued"
	MediaJobDownloading MediaJobStatus = "downloading"
	MediaJobProcessing  MediaJobStatus = "processing"
	MediaJobCompleted   MediaJobStatus = "completed"
	MediaJobFailed      MediaJobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s MediaJobStatus) Terminal() bool {
	return s == MediaJobCompleted || s == MediaJobFailed
}

// Media job error codes.
const (
	ErrCodeQueueUnavailable = "queue_unavailable"
	ErrCodeDownloadFailed   = "download_failed"
	ErrCodeStalled          = "stalled"
)

// MediaDownloadJob tracks one external media download through the durable
// queue. Invariants: completed implies MediaAssetID and UploadID are set;
// failed implies ErrorCode is set.
type MediaDownloadJob struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Platform     Platform       `json:"platform"`
	SourceURL    string         `json:"source_url"`
	Status       MediaJobStatus `json:"status"`
	Progress     int            `json:"progress"` // 0..100
	QueueJobID   string         `json:"queue_job_id,omitempty"`
	Attempts     int            `json:"attempts"`
	MaxAttempts  int            `json:"max_attempts"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	MediaAssetID string         `json:"media_asset_id,omitempty"`
	UploadID     string         `json:"upload_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// MediaAsset is a materialized downloaded file. Each asset references
// exactly one Upload.
type MediaAsset struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Platform         Platform  `json:"platform"`
	SourceURL        string    `json:"source_url"`
	FilePath         string    `json:"file_path"`
	FileName         string    `json:"file_name"`
	Size             int64     `json:"size"`
	Mime             string    `json:"mime"`
	DurationS        int       `json:"duration_s"`
	TranscriptStatus string    `json:"transcript_status"`
	UploadID         string    `json:"upload_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Upload is how audits reference a playable file on disk.
type Upload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FileURL   string    `json:"file_url"` // absolute path
	FileType  string    `json:"file_type"`
	Size      int64     `json:"size"`
	Mime      string    `json:"mime"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptSource records which fallback produced a transcript.
type TranscriptSource string

const (
	TranscriptWhisper TranscriptSource = "whisper_audio"
	TranscriptCaption TranscriptSource = "caption_fallback"
	TranscriptTitle   TranscriptSource = "title_fallback"
)

// FeedTranscriptJob tracks transcription of one research item.
type FeedTranscriptJob struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	ResearchItemID   string           `json:"research_item_id"`
	Status           MediaJobStatus   `json:"status"`
	Progress         int              `json:"progress"`
	QueueJobID       string           `json:"queue_job_id,omitempty"`
	Attempts         int              `json:"attempts"`
	TranscriptSource TranscriptSource `json:"transcript_source,omitempty"`
	TranscriptText   string           `json:"transcript_text,omitempty"`
	ErrorCode        string           `json:"error_code,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}
