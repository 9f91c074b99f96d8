// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package feedloop is the five-stage pipeline orchestrator: Discover ->
// RepostPackage -> ScriptVariant -> Audit -> Outcome. Stages are
// independent per item and idempotent per operation.
package feedloop

import (
	"context"
	"time"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/models"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	SearchResearchItems(ctx context.Context, userID string, f models.ItemSearchFilters) (*models.ItemPage, error)
	GetResearchItem(ctx context.Context, userID, id string) (*models.ResearchItem, error)
	MergeResearchItemMeta(ctx context.Context, userID, id string, patch models.JSONMap) (*models.ResearchItem, error)
	AssignCollection(ctx context.Context, userID, itemID, collectionID string) error
	GetCollection(ctx context.Context, userID, id string) (*models.ResearchCollection, error)

	UpsertFollow(ctx context.Context, f *models.FeedSourceFollow) (*models.FeedSourceFollow, bool, error)
	GetFollow(ctx context.Context, userID, id string) (*models.FeedSourceFollow, error)
	ListFollows(ctx context.Context, userID string) ([]models.FeedSourceFollow, error)
	ListDueFollows(ctx context.Context, now time.Time) ([]models.FeedSourceFollow, error)
	DeleteFollow(ctx context.Context, userID, id string) error
	MarkFollowRun(ctx context.Context, userID, id string, lastRunAt, nextRunAt time.Time, lastError string) error
	CreateIngestRun(ctx context.Context, run *models.FeedAutoIngestRun) error
	FinishIngestRun(ctx context.Context, run *models.FeedAutoIngestRun) error
	HasRunningIngestRun(ctx context.Context, followID string) (bool, error)
	ListIngestRuns(ctx context.Context, userID string, limit int) ([]models.FeedAutoIngestRun, error)

	CreateRepostPackage(ctx context.Context, p *models.FeedRepostPackage) error
	GetRepostPackage(ctx context.Context, userID, id string) (*models.FeedRepostPackage, error)
	ListRepostPackages(ctx context.Context, userID, sourceItemID string, limit int) ([]models.FeedRepostPackage, error)
	UpdateRepostPackageStatus(ctx context.Context, userID, id string, status models.RepostStatus) error

	AppendTelemetryEvent(ctx context.Context, e *models.FeedTelemetryEvent) error
	ListTelemetryEvents(ctx context.Context, userID string, since time.Time, limit int) ([]models.FeedTelemetryEvent, error)

	GetMediaJob(ctx context.Context, userID, id string) (*models.MediaDownloadJob, error)
	LatestMediaJobForURL(ctx context.Context, userID, sourceURL string) (*models.MediaDownloadJob, error)
	GetAudit(ctx context.Context, userID, id string) (*models.Audit, error)
	LatestDraftSnapshot(ctx context.Context, userID, sourceItemID string) (*models.DraftSnapshot, error)
}

// VariantEngine is the optimizer surface the script-variant stage uses.
type VariantEngine interface {
	GenerateVariants(ctx context.Context, req *models.VariantRequest) (*models.VariantBatch, error)
}

// Auditor is the audit surface the audit stage uses. RunMultimodal owns
// the credit debit and refund-on-enqueue-failure semantics.
type Auditor interface {
	RunMultimodal(ctx context.Context, userID string, input *models.AuditInput) (*models.Audit, error)
}

// CreditLedger is the slice of the credits service the variant stage
// consumes. Refund is keyed by reference downstream, so a retried
// failure cannot double-refund.
type CreditLedger interface {
	ConsumeOp(ctx context.Context, userID, op, referenceType, referenceID string) (*models.ConsumeResult, error)
	Refund(ctx context.Context, userID string, credits int, op, refID string) error
}

// Service orchestrates the feed loop.
type Service struct {
	store    Store
	variants VariantEngine
	auditor  Auditor
	credits  CreditLedger

	ingestInterval time.Duration
}

// NewService builds the orchestrator.
func NewService(store Store, variants VariantEngine, auditor Auditor, credits CreditLedger, cfg *config.FeedConfig) *Service {
	interval := time.Duration(cfg.AutoIngestIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Service{
		store:          store,
		variants:       variants,
		auditor:        auditor,
		credits:        credits,
		ingestInterval: interval,
	}
}

// ToggleFavorite sets the favorite flag in the item's media_meta. A nil
// desired value flips the current state; setting the current value again
// is a no-op.
func (s *Service) ToggleFavorite(ctx context.Context, userID, itemID string, desired *bool) (bool, error) {
	item, err := s.store.GetResearchItem(ctx, userID, itemID)
	if err != nil {
		return false, err
	}
	current, _ := item.MediaMeta[models.MetaFavorite].(bool)
	next := !current
	if desired != nil {
		next = *desired
	}
	if next == current {
		return current, nil
	}
	if _, err := s.store.MergeResearchItemMeta(ctx, userID, itemID, models.JSONMap{
		models.MetaFavorite: next,
	}); err != nil {
		return false, err
	}
	s.record(ctx, userID, "feed_favorite_toggle", "ok", item.Platform, itemID, models.JSONMap{"favorite": next})
	return next, nil
}

// AssignCollection moves an item into a collection after validating both.
func (s *Service) AssignCollection(ctx context.Context, userID, itemID, collectionID string) error {
	if collectionID == "" {
		return apperr.BadRequest("collection_id is required")
	}
	if _, err := s.store.GetCollection(ctx, userID, collectionID); err != nil {
		return err
	}
	if _, err := s.store.GetResearchItem(ctx, userID, itemID); err != nil {
		return err
	}
	return s.store.AssignCollection(ctx, userID, itemID, collectionID)
}
