// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package queue provides the durable job transport: Watermill over NATS
// JetStream, with an optional embedded broker for single-instance
// deployments. Two topics carry all background work, audit runs and media
// downloads. Jobs are at-least-once; workers must be idempotent.
package queue

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	json "github.com/goccy/go-json"
)

// Job topics.
const (
	TopicAuditJobs = "clipsight.audit_jobs"
	TopicMediaJobs = "clipsight.media_jobs"
)

// StreamName groups the job topics under one JetStream stream.
const StreamName = "CLIPSIGHT_JOBS"

// AuditJob is the payload for one queued audit run.
type AuditJob struct {
	AuditID    string    `json:"audit_id"`
	UserID     string    `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Media job kinds. Downloads and transcripts share the media worker pool.
const (
	MediaKindDownload   = "download"
	MediaKindTranscript = "transcript"
)

// MediaJob is the payload for one queued media-pool job. JobID references
// a MediaDownloadJob or FeedTranscriptJob row depending on Kind.
type MediaJob struct {
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"`
	UserID     string    `json:"user_id"`
	SourceURL  string    `json:"source_url,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// marshalJob wraps a payload in a Watermill message with a fresh UUID,
// which doubles as the Nats-Msg-Id for deduplication.
func marshalJob(payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}
	return message.NewMessage(uuid.New().String(), data), nil
}

// DecodeAuditJob parses an audit job message.
func DecodeAuditJob(msg *message.Message) (*AuditJob, error) {
	var job AuditJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode audit job: %w", err)
	}
	if job.AuditID == "" {
		return nil, fmt.Errorf("audit job missing audit_id")
	}
	return &job, nil
}

// DecodeMediaJob parses a media job message.
func DecodeMediaJob(msg *message.Message) (*MediaJob, error) {
	var job MediaJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode media job: %w", err)
	}
	if job.JobID == "" {
		return nil, fmt.Errorf("media job missing job_id")
	}
	if job.Kind == "" {
		job.Kind = MediaKindDownload
	}
	return &job, nil
}
