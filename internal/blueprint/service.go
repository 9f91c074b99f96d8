// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package blueprint maintains the signature-keyed competitor blueprint
// cache consumed by the consolidated report. One snapshot per user;
// freshness is TTL plus competitor-signature plus platform equality.
package blueprint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/cache"
	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

// channelVideoLimit caps live ingestion per competitor channel.
const channelVideoLimit = 50

// Store is the persistence surface the blueprint cache needs.
type Store interface {
	ListCompetitors(ctx context.Context, userID string, platform models.Platform) ([]models.Competitor, error)
	ListCompetitorVideos(ctx context.Context, userID string, platform models.Platform, limit int) ([]models.CompetitorVideo, error)
	UpsertCompetitorVideo(ctx context.Context, v *models.CompetitorVideo) error
	GetBlueprintSnapshot(ctx context.Context, userID string) (*models.BlueprintSnapshot, error)
	UpsertBlueprintSnapshot(ctx context.Context, s *models.BlueprintSnapshot) error
	SetBlueprintError(ctx context.Context, userID, lastError string) error
	SearchResearchItems(ctx context.Context, userID string, f models.ItemSearchFilters) (*models.ItemPage, error)
}

// Generator produces an LLM blueprint as strict JSON.
type Generator interface {
	Configured() bool
	ChatJSON(ctx context.Context, system, user string) (string, error)
}

// Service resolves blueprints through three layers: badger hot cache, DB
// snapshot, live refresh. Concurrent refreshes for one user coalesce.
type Service struct {
	store        Store
	hot          *cache.Cache
	platformData clients.PlatformDataClient
	generator    Generator
	ttl          time.Duration

	group singleflight.Group
}

// NewService builds the blueprint service. generator may be nil.
func NewService(store Store, hot *cache.Cache, platformData clients.PlatformDataClient, generator Generator, cfg *config.BlueprintConfig) *Service {
	ttlMinutes := cfg.CacheTTLMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 360
	}
	return &Service{
		store:        store,
		hot:          hot,
		platformData: platformData,
		generator:    generator,
		ttl:          time.Duration(ttlMinutes) * time.Minute,
	}
}

// GetOrRefresh returns the blueprint for (user, platform), refreshing on
// cache miss. Refresh failures degrade to the cached payload or the
// deterministic fallback; they never fail the caller.
func (s *Service) GetOrRefresh(ctx context.Context, userID string, platform models.Platform) (*models.BlueprintPayload, error) {
	sig, err := s.signature(ctx, userID, platform)
	if err != nil {
		return nil, err
	}

	hotKey := fmt.Sprintf("blueprint:%s:%s", userID, sig)
	if s.hot != nil {
		var payload models.BlueprintPayload
		if err := s.hot.Get("blueprint", hotKey, &payload); err == nil && payload.Platform == platform {
			return &payload, nil
		}
	}

	snapshot, err := s.store.GetBlueprintSnapshot(ctx, userID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if s.fresh(snapshot, sig, platform) {
		s.warmHotCache(hotKey, snapshot.Payload)
		return snapshot.Payload, nil
	}

	v, err, _ := s.group.Do(userID+":"+string(platform), func() (any, error) {
		return s.refresh(ctx, userID, platform, sig, snapshot)
	})
	if err != nil {
		return nil, err
	}
	payload := v.(*models.BlueprintPayload)
	s.warmHotCache(hotKey, payload)
	return payload, nil
}

// fresh checks TTL, signature, and payload platform.
func (s *Service) fresh(snapshot *models.BlueprintSnapshot, sig string, platform models.Platform) bool {
	if snapshot == nil || snapshot.Payload == nil {
		return false
	}
	if time.Since(snapshot.GeneratedAt) > s.ttl {
		return false
	}
	return snapshot.CompetitorSignature == sig && snapshot.Payload.Platform == platform
}

func (s *Service) warmHotCache(key string, payload *models.BlueprintPayload) {
	if s.hot == nil || payload == nil {
		return
	}
	if err := s.hot.Set(key, payload, s.ttl); err != nil {
		logging.Debug().Err(err).Msg("Failed to warm blueprint hot cache")
	}
}

// signature computes the competitor signature for (user, platform).
func (s *Service) signature(ctx context.Context, userID string, platform models.Platform) (string, error) {
	competitors, err := s.store.ListCompetitors(ctx, userID, platform)
	if err != nil {
		return "", err
	}

	var itemIDs []string
	if platform == models.PlatformInstagram || platform == models.PlatformTikTok {
		page, err := s.store.SearchResearchItems(ctx, userID, models.ItemSearchFilters{
			Platform: platform,
			Limit:    100,
		})
		if err != nil {
			return "", err
		}
		for _, item := range page.Items {
			itemIDs = append(itemIDs, item.ID)
		}
	}
	return competitorSignature(platform, competitors, itemIDs), nil
}

// refresh ingests live competitor videos, asks the LLM for a blueprint,
// and persists the snapshot. Failures persist last_error and fall back.
func (s *Service) refresh(ctx context.Context, userID string, platform models.Platform, sig string, previous *models.BlueprintSnapshot) (*models.BlueprintPayload, error) {
	s.ingestCompetitorVideos(ctx, userID, platform)

	videos, err := s.store.ListCompetitorVideos(ctx, userID, platform, 200)
	if err != nil {
		return nil, err
	}

	payload, genErr := s.generate(ctx, platform, videos)
	if genErr != nil {
		if setErr := s.store.SetBlueprintError(ctx, userID, genErr.Error()); setErr != nil {
			logging.Warn().Err(setErr).Str("user_id", userID).Msg("Failed to persist blueprint error")
		}
		if previous != nil && previous.Payload != nil && previous.Payload.Platform == platform {
			logging.Warn().Err(genErr).Str("user_id", userID).Msg("Blueprint refresh failed, serving stale payload")
			return previous.Payload, nil
		}
		payload = fallbackPayload(platform, videos)
	}
	payload = normalizePayload(payload, platform)

	snapshot := &models.BlueprintSnapshot{
		UserID:              userID,
		Payload:             payload,
		CompetitorSignature: sig,
		GeneratedAt:         time.Now().UTC(),
	}
	if err := s.store.UpsertBlueprintSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	logging.Info().
		Str("user_id", userID).
		Str("platform", string(platform)).
		Int("video_count", len(videos)).
		Bool("used_fallback", genErr != nil).
		Msg("Blueprint refreshed")
	return payload, nil
}

// ingestCompetitorVideos pulls up to channelVideoLimit fresh videos per
// tracked YouTube competitor. Ingest errors degrade to the stored corpus.
func (s *Service) ingestCompetitorVideos(ctx context.Context, userID string, platform models.Platform) {
	if platform != models.PlatformYouTube || s.platformData == nil || !s.platformData.Configured() {
		return
	}
	competitors, err := s.store.ListCompetitors(ctx, userID, platform)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Competitor listing failed during ingest")
		return
	}

	for _, competitor := range competitors {
		videos, err := s.platformData.ChannelVideos(ctx, competitor.ExternalID, channelVideoLimit)
		if err != nil {
			logging.Warn().Err(err).Str("competitor_id", competitor.ID).Msg("Channel ingest failed")
			continue
		}
		for _, v := range videos {
			cv := &models.CompetitorVideo{
				UserID:       userID,
				CompetitorID: competitor.ID,
				Platform:     platform,
				ExternalID:   v.ExternalID,
				Title:        v.Title,
				DurationS:    v.DurationS,
				Metrics:      v.Metrics,
				PublishedAt:  v.PublishedAt,
			}
			if err := s.store.UpsertCompetitorVideo(ctx, cv); err != nil {
				logging.Warn().Err(err).Str("external_id", v.ExternalID).Msg("Competitor video upsert failed")
			}
		}
	}
}

// blueprintSystemPrompt constrains the model to the payload schema.
const blueprintSystemPrompt = `You are a competitive-content strategist. Respond with ONLY a JSON object, no prose, matching:
{
  "gap_analysis": [string],
  "content_pillars": [string],
  "video_ideas": [{"title_seed": string, "rationale": string}],
  "hook_intelligence": object,
  "winner_pattern_signals": object,
  "framework_playbook": object,
  "repurpose_plan": object,
  "velocity_actions": [string]
}`

// generate asks the LLM for a blueprint over the competitor corpus.
func (s *Service) generate(ctx context.Context, platform models.Platform, videos []models.CompetitorVideo) (*models.BlueprintPayload, error) {
	if s.generator == nil || !s.generator.Configured() {
		return nil, apperr.FeatureDisabled("no blueprint provider configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Platform: %s\nCompetitor corpus (%d videos):\n", platform, len(videos))
	for i, v := range videos {
		if i >= 40 {
			break
		}
		fmt.Fprintf(&b, "- %q views=%d likes=%d duration_s=%.0f\n",
			v.Title, v.Metrics.Views, v.Metrics.Likes, v.DurationS)
	}
	b.WriteString("\nProduce the blueprint for a creator competing in this niche.")

	raw, err := s.generator.ChatJSON(ctx, blueprintSystemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("blueprint generation failed: %w", err)
	}

	cleaned := strings.TrimSpace(raw)
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}
	var payload models.BlueprintPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("blueprint response is not valid JSON: %w", err)
	}
	if len(payload.GapAnalysis) == 0 && len(payload.ContentPillars) == 0 {
		return nil, fmt.Errorf("blueprint response is empty")
	}
	payload.Platform = platform
	payload.DatasetSummary = datasetSummary(videos)
	return &payload, nil
}
