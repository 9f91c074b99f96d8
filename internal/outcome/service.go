// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package outcome closes the loop: it records real post performance
// against predicted scores and maintains per-platform calibration
// snapshots.
package outcome

import (
	"context"
	"errors"
	"time"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/metrics"
	"github.com/clipsight/clipsight/internal/models"
)

// snapshotSampleLimit bounds how many outcomes feed one snapshot rebuild.
const snapshotSampleLimit = 250

// Store is the persistence surface for outcomes and calibration.
type Store interface {
	AppendOutcomeMetric(ctx context.Context, m *models.OutcomeMetric) error
	RecentOutcomeMetrics(ctx context.Context, userID string, platform models.Platform, limit int) ([]models.OutcomeMetric, error)
	OutcomeMetricsSince(ctx context.Context, userID string, platform models.Platform, since time.Time) ([]models.OutcomeMetric, error)
	OutcomeByReportID(ctx context.Context, userID, reportID string) (*models.OutcomeMetric, error)
	DistinctOutcomePairs(ctx context.Context) ([][2]string, error)
	UpsertCalibrationSnapshot(ctx context.Context, s *models.CalibrationSnapshot) error
	GetCalibrationSnapshot(ctx context.Context, userID string, platform models.Platform) (*models.CalibrationSnapshot, error)
	GetResearchItem(ctx context.Context, userID, id string) (*models.ResearchItem, error)
}

// Service records outcomes and keeps calibration current.
type Service struct {
	store Store
}

// NewService builds the outcome service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// IngestRequest records one published post's real metrics.
type IngestRequest struct {
	Platform        models.Platform      `json:"platform" validate:"required,platform"`
	ContentItemID   string               `json:"content_item_id,omitempty"`
	DraftSnapshotID string               `json:"draft_snapshot_id,omitempty"`
	ReportID        string               `json:"report_id,omitempty"`
	VideoExternalID string               `json:"video_external_id,omitempty"`
	PostedAt        *time.Time           `json:"posted_at,omitempty"`
	ActualMetrics   models.ActualMetrics `json:"actual_metrics"`
	RetentionPoints []float64            `json:"retention_points,omitempty"`
	PredictedScore  *float64             `json:"predicted_score,omitempty"`
}

// Ingest appends one immutable outcome row and refreshes the platform's
// calibration snapshot. The actual score is computed here; the predicted
// score resolves from the request, then the linked item's media_meta,
// then stays null.
func (s *Service) Ingest(ctx context.Context, userID string, req *IngestRequest) (*models.OutcomeMetric, error) {
	if req == nil || !req.Platform.Valid() {
		return nil, apperr.BadRequest("platform must be youtube, instagram, or tiktok")
	}
	if req.ActualMetrics.Views < 0 {
		return nil, apperr.BadRequest("views cannot be negative")
	}

	postedAt := time.Now().UTC()
	if req.PostedAt != nil {
		postedAt = req.PostedAt.UTC()
	}

	metric := &models.OutcomeMetric{
		UserID:          userID,
		Platform:        req.Platform,
		ContentItemID:   req.ContentItemID,
		DraftSnapshotID: req.DraftSnapshotID,
		ReportID:        req.ReportID,
		VideoExternalID: req.VideoExternalID,
		PostedAt:        postedAt,
		ActualMetrics:   req.ActualMetrics,
		RetentionPoints: req.RetentionPoints,
		ActualScore:     actualScore(req.ActualMetrics, req.RetentionPoints),
	}

	metric.PredictedScore = s.resolvePredicted(ctx, userID, req)
	if metric.PredictedScore != nil {
		delta := round2(metric.ActualScore - *metric.PredictedScore)
		metric.CalibrationDelta = &delta
	}

	if err := s.store.AppendOutcomeMetric(ctx, metric); err != nil {
		return nil, err
	}

	// Snapshot refresh rides the ingest; failure does not fail the write.
	if err := s.refreshSnapshot(ctx, userID, req.Platform); err != nil {
		logging.Warn().Err(err).
			Str("user_id", userID).
			Str("platform", string(req.Platform)).
			Msg("Calibration refresh after ingest failed")
	}
	return metric, nil
}

// resolvePredicted picks the predicted score: an explicit request value
// clamped to [0, 100] wins, then the linked item's media_meta.
func (s *Service) resolvePredicted(ctx context.Context, userID string, req *IngestRequest) *float64 {
	if req.PredictedScore != nil {
		v := *req.PredictedScore
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		return &v
	}
	if req.ContentItemID == "" {
		return nil
	}
	item, err := s.store.GetResearchItem(ctx, userID, req.ContentItemID)
	if err != nil {
		return nil
	}
	if v, ok := item.MediaMeta.GetFloat(models.MetaPredictedScore); ok {
		return &v
	}
	return nil
}

// ListRecent returns the newest outcomes for a platform.
func (s *Service) ListRecent(ctx context.Context, userID string, platform models.Platform, limit int) ([]models.OutcomeMetric, error) {
	if !platform.Valid() {
		return nil, apperr.BadRequest("platform must be youtube, instagram, or tiktok")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.RecentOutcomeMetrics(ctx, userID, platform, limit)
}

// Summary returns the calibration view: snapshot, drift windows, and
// recent outcomes. A missing snapshot is not an error.
func (s *Service) Summary(ctx context.Context, userID string, platform models.Platform) (*models.OutcomeSummary, error) {
	if !platform.Valid() {
		return nil, apperr.BadRequest("platform must be youtube, instagram, or tiktok")
	}

	summary := &models.OutcomeSummary{}
	snapshot, err := s.store.GetCalibrationSnapshot(ctx, userID, platform)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	summary.Snapshot = snapshot

	drift, err := s.driftWindows(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	summary.DriftWindows = drift
	summary.NextActions = nextActions(snapshot, drift)

	recent, err := s.store.RecentOutcomeMetrics(ctx, userID, platform, 20)
	if err != nil {
		return nil, err
	}
	summary.RecentOutcomes = recent
	return summary, nil
}

// Recalibrate rebuilds the snapshot for one (user, platform) on demand.
func (s *Service) Recalibrate(ctx context.Context, userID string, platform models.Platform) (*models.CalibrationSnapshot, error) {
	if !platform.Valid() {
		return nil, apperr.BadRequest("platform must be youtube, instagram, or tiktok")
	}
	if err := s.refreshSnapshot(ctx, userID, platform); err != nil {
		return nil, err
	}
	return s.store.GetCalibrationSnapshot(ctx, userID, platform)
}

// RecalibrateAll sweeps every (user, platform) pair with outcomes. Driven
// by the nightly scheduler; per-pair failures never abort the sweep.
func (s *Service) RecalibrateAll(ctx context.Context) (*models.RecalibrateResult, error) {
	pairs, err := s.store.DistinctOutcomePairs(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.RecalibrateResult{}
	for _, pair := range pairs {
		if err := s.refreshSnapshot(ctx, pair[0], models.Platform(pair[1])); err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Skipped++
			continue
		}
		result.Refreshed++
	}
	logging.Info().
		Int("refreshed", result.Refreshed).
		Int("skipped", result.Skipped).
		Msg("Calibration sweep finished")
	return result, nil
}

// refreshSnapshot rebuilds and persists one snapshot from the last 250
// outcomes.
func (s *Service) refreshSnapshot(ctx context.Context, userID string, platform models.Platform) error {
	outcomes, err := s.store.RecentOutcomeMetrics(ctx, userID, platform, snapshotSampleLimit)
	if err != nil {
		metrics.CalibrationRefreshes.WithLabelValues("error").Inc()
		return err
	}

	snapshot := buildSnapshot(userID, platform, outcomes)
	if err := s.store.UpsertCalibrationSnapshot(ctx, snapshot); err != nil {
		metrics.CalibrationRefreshes.WithLabelValues("error").Inc()
		return err
	}
	metrics.CalibrationRefreshes.WithLabelValues("ok").Inc()
	return nil
}
