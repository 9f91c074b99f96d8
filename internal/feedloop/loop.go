// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package feedloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

// VariantGenerate runs the script-variant stage for one discovered item:
// it infers the brief from the item, debits credits inside the optimizer,
// and fingerprints the item's media_meta with the batch.
func (s *Service) VariantGenerate(ctx context.Context, userID, itemID string) (*models.VariantBatch, error) {
	item, err := s.store.GetResearchItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	req := &models.VariantRequest{
		UserID:       userID,
		Platform:     item.Platform,
		Topic:        inferTopic(item),
		Audience:     inferAudience(item),
		Objective:    "repurpose a proven performer for your own audience",
		SourceItemID: item.ID,
	}
	if duration, ok := item.MediaMeta["duration_s"].(float64); ok && duration > 0 {
		req.DurationS = duration
	}

	debit, err := s.credits.ConsumeOp(ctx, userID, models.CreditOpOptimizerVariants, "research_item", item.ID)
	if err != nil {
		return nil, err
	}

	batch, err := s.variants.GenerateVariants(ctx, req)
	if err != nil {
		if refundErr := s.credits.Refund(ctx, userID, debit.Charged, models.CreditOpOptimizerVariants, item.ID); refundErr != nil {
			logging.Error().Err(refundErr).Str("user_id", userID).Str("item_id", itemID).Msg("Variant refund failed")
		}
		s.record(ctx, userID, "feed_variant_loop", "error", item.Platform, itemID, nil)
		return nil, err
	}

	if _, err := s.store.MergeResearchItemMeta(ctx, userID, itemID, models.JSONMap{
		models.MetaLoopLastVariantAt: time.Now().UTC().Format(time.RFC3339),
		models.MetaLoopLastVariantN:  len(batch.Variants),
	}); err != nil {
		return nil, err
	}

	s.record(ctx, userID, "feed_variant_loop", "ok", item.Platform, itemID, models.JSONMap{
		"batch_id": batch.ID, "variant_count": len(batch.Variants),
	})
	return batch, nil
}

// inferTopic builds the variant brief's topic from the item.
func inferTopic(item *models.ResearchItem) string {
	topic := strings.TrimSpace(item.Title)
	if topic == "" {
		topic = strings.TrimSpace(item.Caption)
	}
	if topic == "" {
		topic = fmt.Sprintf("a trending %s video", item.Platform)
	}
	return topic
}

// inferAudience derives a loose audience descriptor from the creator.
func inferAudience(item *models.ResearchItem) string {
	if item.CreatorDisplayName != "" {
		return fmt.Sprintf("viewers who follow creators like %s", item.CreatorDisplayName)
	}
	if item.CreatorHandle != "" {
		return fmt.Sprintf("viewers who follow creators like %s", item.CreatorHandle)
	}
	return ""
}

// LoopAudit runs the audit stage for one discovered item. It requires a
// completed media download for the item; the audit service owns the
// credit debit and refund semantics.
func (s *Service) LoopAudit(ctx context.Context, userID, itemID string) (*models.Audit, error) {
	item, err := s.store.GetResearchItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	job, err := s.resolveDownloadJob(ctx, userID, item)
	if err != nil {
		s.record(ctx, userID, "feed_audit_loop", "error", item.Platform, itemID, nil)
		return nil, err
	}

	input := &models.AuditInput{
		SourceMode:   models.AuditSourceUpload,
		UploadID:     job.UploadID,
		Platform:     item.Platform,
		Title:        item.Title,
		SourceItemID: item.ID,
	}
	if item.Metrics.Views > 0 {
		input.PlatformMetrics = models.JSONMap{
			"views":  item.Metrics.Views,
			"likes":  item.Metrics.Likes,
			"shares": item.Metrics.Shares,
			"saves":  item.Metrics.Saves,
		}
	}

	audit, err := s.auditor.RunMultimodal(ctx, userID, input)
	if err != nil {
		s.record(ctx, userID, "feed_audit_loop", "error", item.Platform, itemID, nil)
		return nil, err
	}

	if _, err := s.store.MergeResearchItemMeta(ctx, userID, itemID, models.JSONMap{
		models.MetaLoopLastAuditID: audit.ID,
		models.MetaLoopLastAuditAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}

	s.record(ctx, userID, "feed_audit_loop", "ok", item.Platform, itemID, models.JSONMap{
		"audit_id": audit.ID,
	})
	return audit, nil
}

// resolveDownloadJob finds the completed download backing an item: the
// media_meta job reference first, then the latest job for the item's URL.
func (s *Service) resolveDownloadJob(ctx context.Context, userID string, item *models.ResearchItem) (*models.MediaDownloadJob, error) {
	var job *models.MediaDownloadJob
	if jobID, ok := item.MediaMeta[models.MetaFeedDownloadJobID].(string); ok && jobID != "" {
		found, err := s.store.GetMediaJob(ctx, userID, jobID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		job = found
	}
	if job == nil {
		found, err := s.store.LatestMediaJobForURL(ctx, userID, item.URL)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, apperr.Conflict("no media download exists for this item; download it first")
			}
			return nil, err
		}
		job = found
	}
	if job.Status != models.MediaJobCompleted || job.UploadID == "" {
		return nil, apperr.Conflict("media download has not completed; retry once it finishes")
	}
	return job, nil
}

// Summary builds the per-item pipeline view: which stages the item has
// passed and the next step to take.
func (s *Service) Summary(ctx context.Context, userID, itemID string) (*models.LoopSummary, error) {
	item, err := s.store.GetResearchItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	summary := &models.LoopSummary{
		SourceItem:      item,
		StageCompletion: models.LoopStageCompletion{Discovered: true},
	}

	if packages, err := s.store.ListRepostPackages(ctx, userID, itemID, 1); err == nil && len(packages) > 0 {
		summary.LatestRepostPackage = &packages[0]
		summary.StageCompletion.Packaged = true
	}

	if snapshot, err := s.store.LatestDraftSnapshot(ctx, userID, itemID); err == nil && snapshot != nil {
		summary.LatestDraftSnapshot = snapshot
		summary.StageCompletion.Scripted = true
	} else if _, ok := item.MediaMeta[models.MetaLoopLastVariantAt]; ok {
		summary.StageCompletion.Scripted = true
	}

	if auditID, ok := item.MediaMeta[models.MetaLoopLastAuditID].(string); ok && auditID != "" {
		if audit, err := s.store.GetAudit(ctx, userID, auditID); err == nil {
			summary.LatestAudit = audit
			summary.StageCompletion.Audited = true
			if audit.Status == models.AuditCompleted {
				summary.StageCompletion.Reported = true
				s.markReported(ctx, userID, item, audit)
			}
		}
	}

	summary.NextStep = nextStep(summary.StageCompletion)
	return summary, nil
}

// markReported records the report-delivery stage the first time a
// completed audit is observed for an item. The media_meta stamp keeps
// repeat summaries from inflating the funnel.
func (s *Service) markReported(ctx context.Context, userID string, item *models.ResearchItem, audit *models.Audit) {
	if prev, _ := item.MediaMeta[models.MetaLoopReportedAuditID].(string); prev == audit.ID {
		return
	}
	if _, err := s.store.MergeResearchItemMeta(ctx, userID, item.ID, models.JSONMap{
		models.MetaLoopReportedAuditID: audit.ID,
	}); err != nil {
		logging.Warn().Err(err).Str("item_id", item.ID).Msg("Report-delivery stamp failed")
		return
	}
	s.record(ctx, userID, "feed_report_delivery", "ok", item.Platform, item.ID, models.JSONMap{
		"audit_id": audit.ID,
	})
}

// nextStep names the first unmet stage's action.
func nextStep(c models.LoopStageCompletion) string {
	switch {
	case !c.Packaged:
		return "Build a repost package for this item"
	case !c.Scripted:
		return "Generate script variants from the repost package"
	case !c.Audited:
		return "Download the source video and run a multimodal audit"
	case !c.Reported:
		return "Wait for the audit to complete, then open the consolidated report"
	default:
		return "Loop complete; record real performance once you publish"
	}
}
