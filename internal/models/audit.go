// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// AuditStatus is the audit job lifecycle.
type AuditStatus string

const (
	AuditPending         AuditStatus = "pending"
	AuditDownloading     AuditStatus = "downloading"
	AuditProcessingVideo AuditStatus = "processing_video"
	AuditProcessingAudio AuditStatus = "processing_audio"
	AuditAnalyzing       AuditStatus = "analyzing"
	AuditCompleted       AuditStatus = "completed"
	AuditFailed          AuditStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s AuditStatus) Terminal() bool {
	return s == AuditCompleted || s == AuditFailed
}

// ProgressFor returns the canonical progress string for a status.
func ProgressFor(s AuditStatus) string {
	switch s {
	case AuditPending:
		return "0"
	case AuditDownloading:
		return "10"
	case AuditProcessingVideo:
		return "30"
	case AuditProcessingAudio:
		return "50"
	case AuditAnalyzing:
		return "70"
	default:
		return "100"
	}
}

// Audit source modes.
const (
	AuditSourceURL    = "url"
	AuditSourceUpload = "upload"
)

// AuditInput is the persisted input payload of an audit. VideoURL and
// UploadPath are mutually exclusive per SourceMode.
type AuditInput struct {
	SourceMode      string    `json:"source_mode"` // url or upload
	VideoURL        string    `json:"video_url,omitempty"`
	UploadPath      string    `json:"upload_path,omitempty"`
	UploadID        string    `json:"upload_id,omitempty"`
	Platform        Platform  `json:"platform,omitempty"`
	Title           string    `json:"title,omitempty"`
	SourceItemID    string    `json:"source_item_id,omitempty"`
	DeleteAfterRun  bool      `json:"delete_after_run,omitempty"`
	PlatformMetrics JSONMap   `json:"platform_metrics,omitempty"`
	RetentionPoints []float64 `json:"retention_points,omitempty"`
}

// TimestampFeedback is one timed observation in a video analysis.
type TimestampFeedback struct {
	Timestamp   string `json:"timestamp"` // MM:SS
	Category    string `json:"category"`  // Hook, Pacing, Visuals, Audio
	Observation string `json:"observation"`
	Impact      string `json:"impact"` // Positive, Negative, Neutral
	Suggestion  string `json:"suggestion,omitempty"`
}

// AnalysisSection is one scored section of a video analysis.
type AnalysisSection struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"` // 0..10
	Feedback []string `json:"feedback"`
}

// VideoAnalysis is the multimodal analysis result for one video.
type VideoAnalysis struct {
	VideoID           string              `json:"video_id"`
	OverallScore      float64             `json:"overall_score"` // 0..10
	Summary           string              `json:"summary"`
	Sections          []AnalysisSection   `json:"sections"`
	TimestampFeedback []TimestampFeedback `json:"timestamp_feedback"`
}

// Diagnosis names the primary growth bottleneck for a channel.
type Diagnosis struct {
	PrimaryBottleneck string   `json:"primary_bottleneck"`
	StatsScore        float64  `json:"stats_score"`
	Summary           string   `json:"summary"`
	Recommendations   []string `json:"recommendations"`
}

// AuditOutput is the persisted output bundle of a completed audit.
type AuditOutput struct {
	Diagnosis             *Diagnosis      `json:"diagnosis,omitempty"`
	VideoAnalysis         *VideoAnalysis  `json:"video_analysis"`
	PerformancePrediction *ScoreBreakdown `json:"performance_prediction,omitempty"`
}

// Audit is one multimodal audit job. Progress is a string "0".."100"
// tracking the status.
type Audit struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Status       AuditStatus  `json:"status"`
	Progress     string       `json:"progress"`
	Input        *AuditInput  `json:"input_json,omitempty"`
	Output       *AuditOutput `json:"output_json,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// ReportShareLink is a short-lived token for sharing one audit report.
type ReportShareLink struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	AuditID        string     `json:"audit_id"`
	ShareToken     string     `json:"share_token"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
