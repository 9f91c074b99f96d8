// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package optimizer

import (
	"context"
	"strings"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

// minScriptLength is the shortest script rescore will accept, in chars.
const minScriptLength = 20

// Store is the persistence surface the optimizer needs.
type Store interface {
	CreateVariantBatch(ctx context.Context, batch *models.VariantBatch) error
	GetVariantBatch(ctx context.Context, userID, id string) (*models.VariantBatch, error)
	CreateDraftSnapshot(ctx context.Context, d *models.DraftSnapshot) error
	GetDraftSnapshot(ctx context.Context, userID, id string) (*models.DraftSnapshot, error)
	ListDraftSnapshots(ctx context.Context, userID string, limit int) ([]models.DraftSnapshot, error)
	LatestDraftSnapshot(ctx context.Context, userID, sourceItemID string) (*models.DraftSnapshot, error)
	ListCompetitorVideos(ctx context.Context, userID string, platform models.Platform, limit int) ([]models.CompetitorVideo, error)
	RecentOutcomeMetrics(ctx context.Context, userID string, platform models.Platform, limit int) ([]models.OutcomeMetric, error)
}

// ScriptGenerator produces AI script variants. Implementations may fail;
// the service falls back to deterministic templates.
type ScriptGenerator interface {
	GenerateScriptVariants(ctx context.Context, req *models.VariantRequest, durationS float64) ([]GeneratedVariant, error)
}

// Service is the detector-based scoring engine.
type Service struct {
	store     Store
	generator ScriptGenerator
}

// NewService builds the optimizer. generator may be nil when no provider
// key is configured; fallbacks then serve every request.
func NewService(store Store, generator ScriptGenerator) *Service {
	return &Service{store: store, generator: generator}
}

// RescoreRequest is the input to Rescore.
type RescoreRequest struct {
	UserID                   string                   `json:"user_id,omitempty"`
	Script                   string                   `json:"script" validate:"required"`
	Platform                 models.Platform          `json:"platform" validate:"required,platform"`
	DurationS                float64                  `json:"duration_s,omitempty"`
	Metrics                  *TrueMetrics             `json:"metrics,omitempty"`
	BaselineScore            *float64                 `json:"baseline_score,omitempty"`
	BaselineDetectorRankings []models.DetectorRanking `json:"baseline_detector_rankings,omitempty"`
}

// evaluation is the shared output of one evaluateScript pass.
type evaluation struct {
	Breakdown  models.ScoreBreakdown
	Rankings   []models.DetectorRanking
	Actions    []models.NextAction
	Transcript Transcript
	Analysis   simulatedAnalysis
	Format     models.FormatType
	DurationS  float64
}

// evaluateScript runs the full deterministic pipeline for one script.
func (s *Service) evaluateScript(ctx context.Context, userID string, platform models.Platform, script string, durationS float64, metrics *TrueMetrics) (*evaluation, error) {
	return s.evaluateTranscript(ctx, userID, platform, synthesizeTranscript(script, durationS), durationS, metrics)
}

// evaluateTranscript scores an already-segmented transcript.
func (s *Service) evaluateTranscript(ctx context.Context, userID string, platform models.Platform, tr Transcript, durationS float64, metrics *TrueMetrics) (*evaluation, error) {
	format := models.FormatFor(durationS)
	analysis := simulateAnalysis(tr, durationS)
	detectors := runDetectors(tr, analysis, durationS, format)

	pm := platformScore(analysis, detectors, metrics)

	var competitorVideos []models.CompetitorVideo
	var outcomes []models.OutcomeMetric
	if userID != "" {
		var err error
		competitorVideos, err = s.store.ListCompetitorVideos(ctx, userID, platform, 200)
		if err != nil {
			return nil, err
		}
		outcomes, err = s.store.RecentOutcomeMetrics(ctx, userID, platform, 250)
		if err != nil {
			return nil, err
		}
	}

	cm := competitorBenchmark(competitorVideos, format, pm.Score)
	hm := historicalBaseline(outcomes)
	combined := combineScores(pm, cm, hm)

	rankings := rankDetectors(detectors)

	return &evaluation{
		Breakdown: models.ScoreBreakdown{
			PlatformMetrics:   pm,
			CompetitorMetrics: cm,
			HistoricalMetrics: hm,
			CombinedMetrics:   combined,
			Combined:          combined.Score,
			FormatType:        format,
			DurationSeconds:   durationS,
		},
		Rankings:   rankings,
		Actions:    nextActions(rankings),
		Transcript: tr,
		Analysis:   analysis,
		Format:     format,
		DurationS:  durationS,
	}, nil
}

// PredictFromTranscript scores a real transcript the same way rescore
// scores a script. The audit runner uses it for performance predictions.
func (s *Service) PredictFromTranscript(ctx context.Context, userID string, platform models.Platform, tr Transcript, durationS float64, metrics *TrueMetrics) (*models.ScoreBreakdown, error) {
	eval, err := s.evaluateTranscript(ctx, userID, platform, tr, durationS, metrics)
	if err != nil {
		return nil, err
	}
	breakdown := eval.Breakdown
	breakdown.Platform = platform
	breakdown.NextActions = eval.Actions
	return &breakdown, nil
}

// GenerateVariants builds, scores, ranks, and persists exactly three
// script variants for a request.
func (s *Service) GenerateVariants(ctx context.Context, req *models.VariantRequest) (*models.VariantBatch, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, apperr.BadRequest("topic is required")
	}
	durationS := resolveDuration(req)

	var generated []GeneratedVariant
	var providerErr error
	if s.generator != nil {
		generated, providerErr = s.generator.GenerateScriptVariants(ctx, req, durationS)
		if providerErr != nil {
			logging.Warn().
				Err(providerErr).
				Str("platform", string(req.Platform)).
				Msg("Variant generation provider failed, using fallbacks")
		}
	} else {
		providerErr = apperr.New(apperr.KindFeatureDisabled, "no generation provider configured")
	}

	variants := assembleVariants(req, generated, providerErr)
	for i := range variants {
		eval, err := s.evaluateScript(ctx, req.UserID, req.Platform, variants[i].ScriptText, durationS, nil)
		if err != nil {
			return nil, err
		}
		variants[i].ScoreBreakdown = eval.Breakdown
	}
	rankVariants(variants)

	batch := &models.VariantBatch{
		UserID:       req.UserID,
		SourceItemID: req.SourceItemID,
		Platform:     req.Platform,
		Topic:        req.Topic,
		Request: models.JSONMap{
			"platform":   string(req.Platform),
			"topic":      req.Topic,
			"audience":   req.Audience,
			"objective":  req.Objective,
			"tone":       req.Tone,
			"duration_s": durationS,
		},
		Variants: variants,
	}
	if err := s.store.CreateVariantBatch(ctx, batch); err != nil {
		return nil, err
	}
	logging.Info().
		Str("batch_id", batch.ID).
		Str("platform", string(req.Platform)).
		Float64("top_combined", variants[0].ScoreBreakdown.Combined).
		Bool("used_fallback", variants[0].UsedFallback).
		Msg("Variant batch generated")
	return batch, nil
}

// GetVariantBatch returns one persisted batch scoped to its owner.
func (s *Service) GetVariantBatch(ctx context.Context, userID, id string) (*models.VariantBatch, error) {
	return s.store.GetVariantBatch(ctx, userID, id)
}

// Rescore evaluates an edited script against its baseline.
func (s *Service) Rescore(ctx context.Context, req *RescoreRequest) (*models.RescoreResult, error) {
	script := strings.TrimSpace(req.Script)
	if len(script) < minScriptLength {
		return nil, apperr.BadRequest("script is too short to score")
	}

	durationS := req.DurationS
	if durationS <= 0 {
		durationS = platformDurationDefaults[req.Platform]
		if durationS == 0 {
			durationS = 45
		}
	}

	eval, err := s.evaluateScript(ctx, req.UserID, req.Platform, script, durationS, req.Metrics)
	if err != nil {
		return nil, err
	}

	lines := splitScriptLines(script)
	edits := lineLevelEdits(eval.Rankings, lines, eval.Format)
	diff := improvementDiff(eval.Breakdown.Combined, eval.Rankings,
		req.BaselineScore, req.BaselineDetectorRankings, eval.Breakdown.CombinedMetrics.Weights)

	return &models.RescoreResult{
		ScoreBreakdown:   eval.Breakdown,
		DetectorRankings: eval.Rankings,
		NextActions:      eval.Actions,
		LineLevelEdits:   edits,
		ImprovementDiff:  diff,
		Signals: models.JSONMap{
			"hook_score":       round2(eval.Analysis.HookScore),
			"body_score":       round2(eval.Analysis.BodyScore),
			"cta_score":        round2(eval.Analysis.CTAScore),
			"overall_score_10": eval.Analysis.OverallScore10,
			"line_count":       len(lines),
		},
		FormatType:      eval.Format,
		DurationSeconds: durationS,
	}, nil
}

// CreateDraftSnapshot persists a rescored draft, computing the delta when
// a baseline is present.
func (s *Service) CreateDraftSnapshot(ctx context.Context, d *models.DraftSnapshot) (*models.DraftSnapshot, error) {
	if strings.TrimSpace(d.ScriptText) == "" {
		return nil, apperr.BadRequest("script_text is required")
	}
	if d.BaselineScore != nil {
		delta := round2(d.RescoredScore - *d.BaselineScore)
		d.DeltaScore = &delta
	}
	if err := s.store.CreateDraftSnapshot(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDraftSnapshot returns one snapshot scoped to its owner.
func (s *Service) GetDraftSnapshot(ctx context.Context, userID, id string) (*models.DraftSnapshot, error) {
	return s.store.GetDraftSnapshot(ctx, userID, id)
}

// ListDraftSnapshots returns the user's recent snapshots.
func (s *Service) ListDraftSnapshots(ctx context.Context, userID string, limit int) ([]models.DraftSnapshot, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListDraftSnapshots(ctx, userID, limit)
}

// LatestDraftSnapshot returns the newest snapshot, optionally filtered by
// source item.
func (s *Service) LatestDraftSnapshot(ctx context.Context, userID, sourceItemID string) (*models.DraftSnapshot, error) {
	return s.store.LatestDraftSnapshot(ctx, userID, sourceItemID)
}
