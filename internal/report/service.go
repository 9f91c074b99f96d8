// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package report composes the consolidated report: one audit's output
// joined with the competitor blueprint, outcome calibration, and the
// best edited variant.
package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

// Overall-score weights. Stats and strategy are fixed placeholders until
// channel analytics land.
const (
	statsWeight    = 0.3
	videoWeight    = 0.4
	strategyWeight = 0.3

	defaultStatsScore    = 70.0
	defaultStrategyScore = 80.0

	maxRecommendations = 8
)

// Store is the persistence surface for report composition.
type Store interface {
	GetAudit(ctx context.Context, userID, id string) (*models.Audit, error)
	LatestCompletedAudit(ctx context.Context, userID string) (*models.Audit, error)
	LatestDraftSnapshot(ctx context.Context, userID, sourceItemID string) (*models.DraftSnapshot, error)
	OutcomeByReportID(ctx context.Context, userID, reportID string) (*models.OutcomeMetric, error)
	RecentOutcomeMetrics(ctx context.Context, userID string, platform models.Platform, limit int) ([]models.OutcomeMetric, error)
	GetCalibrationSnapshot(ctx context.Context, userID string, platform models.Platform) (*models.CalibrationSnapshot, error)
}

// BlueprintSource supplies the competitor blueprint for the platform.
type BlueprintSource interface {
	GetOrRefresh(ctx context.Context, userID string, platform models.Platform) (*models.BlueprintPayload, error)
}

// OutcomeAnalytics supplies drift windows for the outcome context.
type OutcomeAnalytics interface {
	Summary(ctx context.Context, userID string, platform models.Platform) (*models.OutcomeSummary, error)
}

// Service builds consolidated reports.
type Service struct {
	store      Store
	blueprints BlueprintSource
	outcomes   OutcomeAnalytics
}

// NewService builds the report service. Blueprint and outcome sources are
// optional; missing sources degrade to a leaner report.
func NewService(store Store, blueprints BlueprintSource, outcomes OutcomeAnalytics) *Service {
	return &Service{store: store, blueprints: blueprints, outcomes: outcomes}
}

// Build composes the report for one audit. The audit must have completed.
func (s *Service) Build(ctx context.Context, userID, auditID string) (*models.ConsolidatedReport, error) {
	audit, err := s.store.GetAudit(ctx, userID, auditID)
	if err != nil {
		return nil, err
	}
	return s.compose(ctx, userID, audit)
}

// BuildLatest composes the report for the user's newest completed audit.
func (s *Service) BuildLatest(ctx context.Context, userID string) (*models.ConsolidatedReport, error) {
	audit, err := s.store.LatestCompletedAudit(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("no completed audits yet; run an audit first")
		}
		return nil, err
	}
	return s.compose(ctx, userID, audit)
}

// BuildShared composes a report from an already-resolved audit, used by
// the share-link endpoint where the viewer carries no session.
func (s *Service) BuildShared(ctx context.Context, audit *models.Audit) (*models.ConsolidatedReport, error) {
	return s.compose(ctx, audit.UserID, audit)
}

func (s *Service) compose(ctx context.Context, userID string, audit *models.Audit) (*models.ConsolidatedReport, error) {
	if audit.Status != models.AuditCompleted || audit.Output == nil {
		return nil, apperr.Conflict("audit has not completed; report is available once analysis finishes")
	}

	out := audit.Output
	platform := resolvePlatform(audit)

	report := &models.ConsolidatedReport{
		AuditID:       audit.ID,
		Platform:      platform,
		Diagnosis:     out.Diagnosis,
		VideoAnalysis: out.VideoAnalysis,
		Prediction:    out.PerformancePrediction,
		GeneratedAt:   time.Now().UTC(),
	}
	report.OverallScore = overallScore(out)

	// Joins below are best-effort; a failed join drops its section.
	if s.blueprints != nil {
		if blueprint, err := s.blueprints.GetOrRefresh(ctx, userID, platform); err == nil {
			report.Blueprint = blueprint
		} else {
			logging.Warn().Err(err).Str("audit_id", audit.ID).Msg("Blueprint join failed")
		}
	}

	if audit.Input != nil && audit.Input.SourceItemID != "" {
		if snapshot, err := s.store.LatestDraftSnapshot(ctx, userID, audit.Input.SourceItemID); err == nil {
			report.BestEditedVariant = snapshot
		}
	}

	s.attachOutcomeContext(ctx, userID, audit, platform, report)

	report.Recommendations = buildRecommendations(report)
	report.QuickActions = buildQuickActions(audit, report)
	return report, nil
}

// attachOutcomeContext joins the outcome row for this audit (or the
// platform's latest), the calibration snapshot, and drift windows.
func (s *Service) attachOutcomeContext(ctx context.Context, userID string, audit *models.Audit, platform models.Platform, report *models.ConsolidatedReport) {
	if outcome, err := s.store.OutcomeByReportID(ctx, userID, audit.ID); err == nil {
		report.PredictionVsActual = outcome
	} else if errors.Is(err, database.ErrNotFound) {
		if recent, err := s.store.RecentOutcomeMetrics(ctx, userID, platform, 1); err == nil && len(recent) > 0 {
			report.PredictionVsActual = &recent[0]
		}
	}

	if snapshot, err := s.store.GetCalibrationSnapshot(ctx, userID, platform); err == nil {
		report.CalibrationSnapshot = snapshot
	}

	if s.outcomes != nil {
		if summary, err := s.outcomes.Summary(ctx, userID, platform); err == nil {
			// The drift view already embeds the snapshot and recent rows;
			// strip them so the report carries each fact once.
			summary.Snapshot = nil
			summary.RecentOutcomes = nil
			report.OutcomeDrift = summary
		}
	}
}

// resolvePlatform picks the report platform: prediction, then audit
// input, else youtube.
func resolvePlatform(audit *models.Audit) models.Platform {
	if out := audit.Output; out != nil && out.PerformancePrediction != nil && out.PerformancePrediction.Platform.Valid() {
		return out.PerformancePrediction.Platform
	}
	if audit.Input != nil && audit.Input.Platform.Valid() {
		return audit.Input.Platform
	}
	return models.PlatformYouTube
}

// overallScore mixes stats, video, and strategy on fixed weights.
func overallScore(out *models.AuditOutput) int {
	stats := defaultStatsScore
	if out.Diagnosis != nil && out.Diagnosis.StatsScore > 0 {
		stats = out.Diagnosis.StatsScore
	}

	video := 0.0
	switch {
	case out.PerformancePrediction != nil:
		video = out.PerformancePrediction.Combined
	case out.VideoAnalysis != nil:
		video = out.VideoAnalysis.OverallScore * 10
	}

	mixed := statsWeight*stats + videoWeight*video + strategyWeight*defaultStrategyScore
	return int(math.Round(mixed))
}

// buildRecommendations merges recommendation sources into a deduplicated
// list of at most eight entries, in priority order.
func buildRecommendations(report *models.ConsolidatedReport) []string {
	recs := make([]string, 0, maxRecommendations)
	seen := make(map[string]bool)
	add := func(rec string) {
		if rec == "" || seen[rec] || len(recs) >= maxRecommendations {
			return
		}
		seen[rec] = true
		recs = append(recs, rec)
	}

	if report.Prediction != nil {
		for i, action := range report.Prediction.NextActions {
			if i >= 3 {
				break
			}
			add(action.Title)
		}
	}
	if report.Diagnosis != nil {
		for _, rec := range report.Diagnosis.Recommendations {
			add(rec)
		}
	}
	if report.VideoAnalysis != nil && len(report.VideoAnalysis.TimestampFeedback) > 0 {
		add(report.VideoAnalysis.TimestampFeedback[0].Suggestion)
	}
	if report.Blueprint != nil {
		for i, action := range report.Blueprint.VelocityActions {
			if i >= 2 {
				break
			}
			add(action)
		}
	}
	add(fmt.Sprintf("Your combined score is %d/100; rerun the audit after applying the top fixes to measure the lift", report.OverallScore))
	return recs
}

// buildQuickActions returns the report's single follow-up link: generate
// improved variants, seeded with the audited item and topic when known.
func buildQuickActions(audit *models.Audit, report *models.ConsolidatedReport) []models.QuickAction {
	action := models.QuickAction{
		Key:    "generate_improved_variants",
		Label:  "Generate improved script variants",
		Params: models.JSONMap{"platform": string(report.Platform)},
	}
	if audit.Input != nil {
		if audit.Input.SourceItemID != "" {
			action.Params["source_item_id"] = audit.Input.SourceItemID
		}
		if audit.Input.Title != "" {
			action.Params["topic"] = audit.Input.Title
		}
	}
	return []models.QuickAction{action}
}
