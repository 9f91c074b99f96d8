// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package feedloop

import (
	"context"
	"time"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/metrics"
	"github.com/clipsight/clipsight/internal/models"
)

// ingestItemCap bounds how many item IDs one run records.
const ingestItemCap = 100

// FollowRequest creates or updates a stored discovery query.
type FollowRequest struct {
	Platform       models.Platform   `json:"platform" validate:"required,platform"`
	Mode           models.FollowMode `json:"mode" validate:"required"`
	Query          string            `json:"query" validate:"required"`
	Timeframe      string            `json:"timeframe,omitempty"`
	SortBy         string            `json:"sort_by,omitempty"`
	SortDirection  string            `json:"sort_direction,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	CadenceMinutes int               `json:"cadence_minutes,omitempty"`
	IsActive       *bool             `json:"is_active,omitempty"`
}

// UpsertFollow creates or updates a follow keyed on (platform, mode,
// query). Cadence clamps to [15, 1440] minutes; active follows get a
// next-run stamp.
func (s *Service) UpsertFollow(ctx context.Context, userID string, req *FollowRequest) (*models.FeedSourceFollow, bool, error) {
	if req == nil || !req.Platform.Valid() {
		return nil, false, apperr.BadRequest("platform must be youtube, instagram, or tiktok")
	}
	if !req.Mode.Valid() {
		return nil, false, apperr.BadRequest("mode must be profile, hashtag, keyword, or audio")
	}
	if req.Query == "" {
		return nil, false, apperr.BadRequest("query is required")
	}

	cadence := req.CadenceMinutes
	if cadence <= 0 {
		cadence = 60
	}
	if cadence < 15 {
		cadence = 15
	}
	if cadence > 1440 {
		cadence = 1440
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	follow := &models.FeedSourceFollow{
		UserID:         userID,
		Platform:       req.Platform,
		Mode:           req.Mode,
		Query:          req.Query,
		Timeframe:      req.Timeframe,
		SortBy:         req.SortBy,
		SortDirection:  req.SortDirection,
		Limit:          req.Limit,
		CadenceMinutes: cadence,
		IsActive:       active,
	}
	if active {
		next := time.Now().UTC().Add(time.Duration(cadence) * time.Minute)
		follow.NextRunAt = &next
	}

	saved, created, err := s.store.UpsertFollow(ctx, follow)
	if err != nil {
		return nil, false, err
	}
	s.record(ctx, userID, "feed_follow_upsert", "ok", req.Platform, "", models.JSONMap{
		"follow_id": saved.ID, "created": created,
	})
	return saved, created, nil
}

// ListFollows returns all follows for a user.
func (s *Service) ListFollows(ctx context.Context, userID string) ([]models.FeedSourceFollow, error) {
	return s.store.ListFollows(ctx, userID)
}

// DeleteFollow removes a follow. Its past ingest runs stay.
func (s *Service) DeleteFollow(ctx context.Context, userID, id string) error {
	if _, err := s.store.GetFollow(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteFollow(ctx, userID, id)
}

// ListIngestRuns returns recent auto-ingest runs, newest first.
func (s *Service) ListIngestRuns(ctx context.Context, userID string, limit int) ([]models.FeedAutoIngestRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListIngestRuns(ctx, userID, limit)
}

// RunDueFollows executes every follow whose next run is due. Called by
// the scheduler tick; errors are per-follow and never abort the sweep.
func (s *Service) RunDueFollows(ctx context.Context, now time.Time) error {
	due, err := s.store.ListDueFollows(ctx, now)
	if err != nil {
		return err
	}
	for i := range due {
		s.runFollow(ctx, &due[i], now)
	}
	return nil
}

// RunFollowsRequest triggers ingest runs manually.
type RunFollowsRequest struct {
	FollowIDs  []string `json:"follow_ids,omitempty"`
	RunDueOnly bool     `json:"run_due_only,omitempty"`
}

// RunFollows executes the named follows (or all of the user's active
// follows) immediately, returning the runs it started.
func (s *Service) RunFollows(ctx context.Context, userID string, req *RunFollowsRequest) ([]models.FeedAutoIngestRun, error) {
	if req == nil {
		req = &RunFollowsRequest{}
	}

	var follows []models.FeedSourceFollow
	if len(req.FollowIDs) > 0 {
		for _, id := range req.FollowIDs {
			follow, err := s.store.GetFollow(ctx, userID, id)
			if err != nil {
				return nil, err
			}
			follows = append(follows, *follow)
		}
	} else {
		all, err := s.store.ListFollows(ctx, userID)
		if err != nil {
			return nil, err
		}
		follows = all
	}

	now := time.Now().UTC()
	var runs []models.FeedAutoIngestRun
	for i := range follows {
		f := &follows[i]
		if !f.IsActive {
			continue
		}
		if req.RunDueOnly && (f.NextRunAt == nil || f.NextRunAt.After(now)) {
			continue
		}
		if run := s.runFollow(ctx, f, now); run != nil {
			runs = append(runs, *run)
		}
	}
	return runs, nil
}

// runFollow executes one follow end to end. A follow never overlaps its
// own prior run; overlap skips without touching the schedule.
func (s *Service) runFollow(ctx context.Context, follow *models.FeedSourceFollow, now time.Time) *models.FeedAutoIngestRun {
	running, err := s.store.HasRunningIngestRun(ctx, follow.ID)
	if err != nil {
		logging.Error().Err(err).Str("follow_id", follow.ID).Msg("Overlap check failed")
		return nil
	}
	if running {
		metrics.FeedIngestRuns.WithLabelValues("skipped_overlap").Inc()
		logging.Warn().Str("follow_id", follow.ID).Msg("Skipping ingest run, prior run still in flight")
		return nil
	}

	run := &models.FeedAutoIngestRun{
		FollowID:  follow.ID,
		UserID:    follow.UserID,
		Status:    models.IngestRunning,
		StartedAt: now,
	}
	if err := s.store.CreateIngestRun(ctx, run); err != nil {
		logging.Error().Err(err).Str("follow_id", follow.ID).Msg("Failed to open ingest run")
		return nil
	}

	result, discoverErr := s.Discover(ctx, follow.UserID, &DiscoverRequest{
		Platform:      follow.Platform,
		Mode:          follow.Mode,
		Query:         follow.Query,
		Timeframe:     follow.Timeframe,
		SortBy:        follow.SortBy,
		SortDirection: follow.SortDirection,
		Limit:         follow.Limit,
	})

	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	lastError := ""
	if discoverErr != nil {
		run.Status = models.IngestFailed
		run.ErrorMessage = discoverErr.Error()
		lastError = discoverErr.Error()
		metrics.FeedIngestRuns.WithLabelValues("error").Inc()
	} else {
		run.Status = models.IngestCompleted
		run.ItemCount = result.Total
		for _, item := range result.Items {
			if len(run.ItemIDs) >= ingestItemCap {
				break
			}
			run.ItemIDs = append(run.ItemIDs, item.ID)
		}
		metrics.FeedIngestRuns.WithLabelValues("ok").Inc()
		metrics.FeedItemsIngested.Add(float64(len(run.ItemIDs)))
	}
	if err := s.store.FinishIngestRun(ctx, run); err != nil {
		logging.Error().Err(err).Str("run_id", run.ID).Msg("Failed to close ingest run")
	}

	nextRun := completedAt.Add(time.Duration(follow.CadenceMinutes) * time.Minute)
	if err := s.store.MarkFollowRun(ctx, follow.UserID, follow.ID, completedAt, nextRun, lastError); err != nil {
		logging.Error().Err(err).Str("follow_id", follow.ID).Msg("Failed to stamp follow schedule")
	}

	logging.Info().
		Str("follow_id", follow.ID).
		Str("status", string(run.Status)).
		Int("item_count", run.ItemCount).
		Msg("Ingest run finished")
	return run
}
