// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package feedloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/models"
)

// Per-platform repost targets. Durations and hook deadlines are fixed
// editorial constants.
var (
	repostDurations = map[models.Platform]int{
		models.PlatformYouTube:   34,
		models.PlatformInstagram: 28,
		models.PlatformTikTok:    24,
	}
	repostHookDeadlines = map[models.Platform]int{
		models.PlatformYouTube:   3,
		models.PlatformInstagram: 2,
		models.PlatformTikTok:    2,
	}
)

// PackageRequest asks for a repost plan for one discovered item.
type PackageRequest struct {
	SourceItemID    string            `json:"source_item_id" validate:"required"`
	TargetPlatforms []models.Platform `json:"target_platforms,omitempty"`
}

// BuildRepostPackage synthesizes a deterministic repost plan from the
// source item's title, metrics, and hashtags, then persists it as a draft.
func (s *Service) BuildRepostPackage(ctx context.Context, userID string, req *PackageRequest) (*models.FeedRepostPackage, error) {
	if req == nil || req.SourceItemID == "" {
		return nil, apperr.BadRequest("source_item_id is required")
	}
	item, err := s.store.GetResearchItem(ctx, userID, req.SourceItemID)
	if err != nil {
		return nil, err
	}

	targets := req.TargetPlatforms
	if len(targets) == 0 {
		targets = []models.Platform{models.PlatformYouTube, models.PlatformInstagram, models.PlatformTikTok}
	}
	for _, p := range targets {
		if !p.Valid() {
			return nil, apperr.BadRequest(fmt.Sprintf("unsupported target platform %q", p))
		}
	}

	plan := models.RepostPlan{
		Hooks:   buildHooks(item),
		Targets: make(map[models.Platform]models.RepostTarget, len(targets)),
	}
	for _, p := range targets {
		plan.Targets[p] = buildTarget(p, item, plan.Hooks)
	}

	pkg := &models.FeedRepostPackage{
		UserID:          userID,
		SourceItemID:    item.ID,
		Status:          models.RepostDraft,
		TargetPlatforms: targets,
		Package:         plan,
	}
	if err := s.store.CreateRepostPackage(ctx, pkg); err != nil {
		s.record(ctx, userID, "feed_repost_package", "error", item.Platform, item.ID, nil)
		return nil, err
	}

	s.record(ctx, userID, "feed_repost_package", "ok", item.Platform, item.ID, models.JSONMap{
		"package_id": pkg.ID, "target_count": len(targets),
	})
	return pkg, nil
}

// GetRepostPackage fetches one package.
func (s *Service) GetRepostPackage(ctx context.Context, userID, id string) (*models.FeedRepostPackage, error) {
	return s.store.GetRepostPackage(ctx, userID, id)
}

// ListRepostPackages lists packages, optionally scoped to one source item.
func (s *Service) ListRepostPackages(ctx context.Context, userID, sourceItemID string, limit int) ([]models.FeedRepostPackage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListRepostPackages(ctx, userID, sourceItemID, limit)
}

// UpdateRepostStatus moves a package to a new status. Transitions within
// the allowed set are free-form.
func (s *Service) UpdateRepostStatus(ctx context.Context, userID, id string, status models.RepostStatus) (*models.FeedRepostPackage, error) {
	if !status.Valid() {
		return nil, apperr.BadRequest("status must be draft, scheduled, published, or archived")
	}
	if err := s.store.UpdateRepostPackageStatus(ctx, userID, id, status); err != nil {
		return nil, err
	}
	return s.store.GetRepostPackage(ctx, userID, id)
}

// buildHooks derives the three hook variants from the item's title and
// metrics. Output is deterministic for a given item.
func buildHooks(item *models.ResearchItem) []models.RepostHook {
	topic := strings.TrimSpace(item.Title)
	if topic == "" {
		topic = "this video"
	}
	views := item.Metrics.Views

	outcome := fmt.Sprintf("This got %s views. Here's the exact playbook behind %q.", formatCount(views), topic)
	if views == 0 {
		outcome = fmt.Sprintf("Here's the exact playbook behind %q.", topic)
	}
	return []models.RepostHook{
		{StyleKey: "outcome_proof", Text: outcome},
		{StyleKey: "curiosity_gap", Text: fmt.Sprintf("Nobody talks about the one detail that made %q work.", topic)},
		{StyleKey: "contrarian_take", Text: fmt.Sprintf("Everything you've heard about %q is backwards.", topic)},
	}
}

// buildTarget assembles one per-platform sub-package.
func buildTarget(p models.Platform, item *models.ResearchItem, hooks []models.RepostHook) models.RepostTarget {
	hashtags := extractHashtags(item.Title + " " + item.Caption)
	if len(hashtags) > 5 {
		hashtags = hashtags[:5]
	}

	caption := strings.TrimSpace(item.Title)
	if caption == "" {
		caption = "Reworked from a top performer."
	}

	var directives []string
	switch p {
	case models.PlatformYouTube:
		directives = []string{
			"Lead with the hook text as a title card",
			"Cut any setup past the 3 second mark",
			"End on a subscribe prompt over the final frame",
		}
	case models.PlatformInstagram:
		directives = []string{
			"Burn the hook into the first frame",
			"Keep captions on for sound-off viewing",
			"Loop the ending back into the opening shot",
		}
	default:
		directives = []string{
			"Open mid-action, no intro",
			"Use native text overlays for the hook",
			"Reply-bait CTA in the last second",
		}
	}

	return models.RepostTarget{
		Platform:        p,
		DurationTargetS: repostDurations[p],
		HookDeadlineS:   repostHookDeadlines[p],
		FirstFrameText:  hooks[0].Text,
		Caption:         caption,
		CTALine:         "Follow for the next breakdown.",
		Hashtags:        hashtags,
		EditDirectives:  directives,
	}
}

// formatCount renders a view count compactly (1.2M, 340K).
func formatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/1_000_000), ".0") + "M"
	case n >= 1_000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/1_000), ".0") + "K"
	default:
		return fmt.Sprintf("%d", n)
	}
}
