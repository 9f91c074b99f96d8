// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package media runs the download and transcript pipelines. Enqueue
// writes a queued row first and hands off to the durable queue second, so
// a broker outage leaves an auditable failed row instead of silence.
package media

import (
	"context"
	"errors"
	"strings"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/queue"
)

// Store is the persistence surface the media pipelines need.
type Store interface {
	CreateMediaJob(ctx context.Context, job *models.MediaDownloadJob) error
	GetMediaJob(ctx context.Context, userID, id string) (*models.MediaDownloadJob, error)
	GetMediaJobAny(ctx context.Context, id string) (*models.MediaDownloadJob, error)
	LatestMediaJobForURL(ctx context.Context, userID, sourceURL string) (*models.MediaDownloadJob, error)
	UpdateMediaJobProgress(ctx context.Context, id string, status models.MediaJobStatus, progress int) error
	IncrementMediaJobAttempts(ctx context.Context, id string) (int, error)
	CompleteMediaJob(ctx context.Context, id, mediaAssetID, uploadID string) error
	FailMediaJob(ctx context.Context, id, errorCode, errorMessage string) error
	SetMediaJobQueueID(ctx context.Context, id, queueJobID string) error
	CreateAssetAndUpload(ctx context.Context, asset *models.MediaAsset, upload *models.Upload) error
	LatestAssetForURL(ctx context.Context, userID, sourceURL string) (*models.MediaAsset, error)

	CreateTranscriptJob(ctx context.Context, job *models.FeedTranscriptJob) error
	GetTranscriptJob(ctx context.Context, userID, id string) (*models.FeedTranscriptJob, error)
	GetTranscriptJobAny(ctx context.Context, id string) (*models.FeedTranscriptJob, error)
	UpdateTranscriptJobProgress(ctx context.Context, id string, status models.MediaJobStatus, progress int) error
	CompleteTranscriptJob(ctx context.Context, id string, source models.TranscriptSource, text string) error
	FailTranscriptJob(ctx context.Context, id, errorCode, errorMessage string) error

	GetResearchItem(ctx context.Context, userID, id string) (*models.ResearchItem, error)
	MergeResearchItemMeta(ctx context.Context, userID, id string, patch models.JSONMap) (*models.ResearchItem, error)
}

// Service enqueues media work and answers status queries.
type Service struct {
	store     Store
	publisher queue.JobPublisher
}

// NewService builds the media service.
func NewService(store Store, publisher queue.JobPublisher) *Service {
	return &Service{store: store, publisher: publisher}
}

// EnqueueDownload creates a download job and hands it to the queue. A
// queue-handoff failure marks the row failed with queue_unavailable and
// surfaces ServiceUnavailable.
func (s *Service) EnqueueDownload(ctx context.Context, userID string, platform models.Platform, sourceURL string) (*models.MediaDownloadJob, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return nil, apperr.BadRequest("source_url is required")
	}

	// Completed downloads for the same URL are reused, not re-fetched.
	if existing, err := s.store.LatestMediaJobForURL(ctx, userID, sourceURL); err == nil &&
		existing.Status == models.MediaJobCompleted {
		return existing, nil
	}

	job := &models.MediaDownloadJob{
		UserID:    userID,
		Platform:  platform,
		SourceURL: sourceURL,
	}
	if err := s.store.CreateMediaJob(ctx, job); err != nil {
		return nil, err
	}

	qj := &queue.MediaJob{JobID: job.ID, Kind: queue.MediaKindDownload, UserID: userID, SourceURL: sourceURL}
	if err := s.publisher.PublishMediaJob(ctx, qj); err != nil {
		if failErr := s.store.FailMediaJob(ctx, job.ID, models.ErrCodeQueueUnavailable, "job queue unavailable"); failErr != nil {
			logging.Error().Err(failErr).Str("job_id", job.ID).Msg("Failed to mark orphaned media job")
		}
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "media download queue unavailable", err)
	}
	if err := s.store.SetMediaJobQueueID(ctx, job.ID, job.ID); err != nil {
		logging.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to record queue job id")
	}

	logging.Info().
		Str("job_id", job.ID).
		Str("platform", string(platform)).
		Msg("Media download enqueued")
	return job, nil
}

// EnqueueBulkDownloads enqueues one job per URL, collecting per-URL
// results rather than failing the batch.
func (s *Service) EnqueueBulkDownloads(ctx context.Context, userID string, platform models.Platform, sourceURLs []string) ([]models.BulkJobResult, error) {
	if len(sourceURLs) == 0 {
		return nil, apperr.BadRequest("at least one source_url is required")
	}
	if len(sourceURLs) > 25 {
		return nil, apperr.BadRequest("at most 25 urls per bulk request")
	}

	results := make([]models.BulkJobResult, 0, len(sourceURLs))
	for _, u := range sourceURLs {
		job, err := s.EnqueueDownload(ctx, userID, platform, u)
		if err != nil {
			results = append(results, models.BulkJobResult{SourceURL: u, Error: apperr.DetailOf(err)})
			continue
		}
		results = append(results, models.BulkJobResult{SourceURL: u, JobID: job.ID, Status: string(job.Status)})
	}
	return results, nil
}

// DownloadStatus returns job states for a set of job IDs, scoped to the
// requesting user.
func (s *Service) DownloadStatus(ctx context.Context, userID string, jobIDs []string) ([]models.MediaDownloadJob, error) {
	jobs := make([]models.MediaDownloadJob, 0, len(jobIDs))
	for _, id := range jobIDs {
		job, err := s.store.GetMediaJob(ctx, userID, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// EnqueueTranscript creates a transcript job for a research item. The
// worker resolves the whisper/caption/title preference order.
func (s *Service) EnqueueTranscript(ctx context.Context, userID, researchItemID string) (*models.FeedTranscriptJob, error) {
	if _, err := s.store.GetResearchItem(ctx, userID, researchItemID); err != nil {
		return nil, err
	}

	job := &models.FeedTranscriptJob{
		UserID:         userID,
		ResearchItemID: researchItemID,
	}
	if err := s.store.CreateTranscriptJob(ctx, job); err != nil {
		return nil, err
	}

	qj := &queue.MediaJob{JobID: job.ID, Kind: queue.MediaKindTranscript, UserID: userID}
	if err := s.publisher.PublishMediaJob(ctx, qj); err != nil {
		if failErr := s.store.FailTranscriptJob(ctx, job.ID, models.ErrCodeQueueUnavailable, "job queue unavailable"); failErr != nil {
			logging.Error().Err(failErr).Str("job_id", job.ID).Msg("Failed to mark orphaned transcript job")
		}
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "transcript queue unavailable", err)
	}
	return job, nil
}

// TranscriptStatus returns transcript job states for a set of job IDs.
func (s *Service) TranscriptStatus(ctx context.Context, userID string, jobIDs []string) ([]models.FeedTranscriptJob, error) {
	jobs := make([]models.FeedTranscriptJob, 0, len(jobIDs))
	for _, id := range jobIDs {
		job, err := s.store.GetTranscriptJob(ctx, userID, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}
