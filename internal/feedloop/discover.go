// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package feedloop

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/models"
)

// DiscoverRequest is the discovery query surface.
type DiscoverRequest struct {
	Platform      models.Platform   `json:"platform" validate:"required,platform"`
	Mode          models.FollowMode `json:"mode,omitempty"`
	Query         string            `json:"query,omitempty"`
	Timeframe     string            `json:"timeframe,omitempty"`
	SortBy        string            `json:"sort_by,omitempty"`
	SortDirection string            `json:"sort_direction,omitempty"`
	Page          int               `json:"page,omitempty"`
	Limit         int               `json:"limit,omitempty"`
}

// DiscoverResult is one scored discovery page.
type DiscoverResult struct {
	Items []models.DiscoveredItem `json:"items"`
	Total int                     `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}

// Discover queries the corpus, applies the mode match, and projects each
// item with engagement, velocity, and trending scores.
func (s *Service) Discover(ctx context.Context, userID string, req *DiscoverRequest) (*DiscoverResult, error) {
	if req.Platform == "" {
		return nil, apperr.BadRequest("platform is required")
	}
	if req.Mode != "" && !req.Mode.Valid() {
		return nil, apperr.BadRequest("mode must be profile, hashtag, keyword, or audio")
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	// Candidates come back page-by-page from storage; mode matching is
	// applied in memory because hashtag and audio semantics live in the
	// text blob and media_meta.
	filters := models.ItemSearchFilters{
		Platform:  req.Platform,
		Timeframe: req.Timeframe,
		Page:      1,
		Limit:     100,
	}
	var candidates []models.ResearchItem
	for {
		result, err := s.store.SearchResearchItems(ctx, userID, filters)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, result.Items...)
		if filters.Page >= result.TotalPages || len(result.Items) == 0 || len(candidates) >= 1000 {
			break
		}
		filters.Page++
	}

	now := time.Now().UTC()
	scored := make([]models.DiscoveredItem, 0, len(candidates))
	for _, item := range candidates {
		if !modeMatches(&item, req.Mode, req.Query) {
			continue
		}
		scored = append(scored, projectItem(item, now))
	}

	sortDiscovered(scored, req.SortBy, req.SortDirection)

	total := len(scored)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	s.record(ctx, userID, "feed_discover", "ok", req.Platform, "", models.JSONMap{
		"mode": string(req.Mode), "query": req.Query, "matched": total,
	})
	return &DiscoverResult{Items: scored[start:end], Total: total, Page: page, Limit: limit}, nil
}

// clip01 clamps to [0, 1].
func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// projectItem computes the discovery scores for one item.
func projectItem(item models.ResearchItem, now time.Time) models.DiscoveredItem {
	m := item.Metrics
	views := float64(m.Views)
	if views < 1 {
		views = 1
	}
	engagement := float64(m.Likes+m.Comments+m.Shares+m.Saves) / views

	publishedRef := item.CreatedAt
	if item.PublishedAt != nil {
		publishedRef = *item.PublishedAt
	}
	ageHours := now.Sub(publishedRef).Hours()
	if ageHours < 1 {
		ageHours = 1
	}
	viewsPerHour := float64(m.Views) / ageHours
	recency := math.Exp(-ageHours / 120)
	shareRate := float64(m.Shares+m.Saves) / views

	trending := 100 * (0.35*clip01(viewsPerHour/10000) +
		0.25*clip01(engagement*4) +
		0.20*clip01(shareRate*8) +
		0.20*recency)

	return models.DiscoveredItem{
		ResearchItem:   item,
		EngagementRate: round4(engagement),
		ViewsPerHour:   round2(viewsPerHour),
		TrendingScore:  round2(trending),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// modeMatches applies the per-mode match rule. An empty query matches
// everything.
func modeMatches(item *models.ResearchItem, mode models.FollowMode, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}

	switch mode {
	case models.FollowProfile:
		return strings.Contains(strings.ToLower(item.CreatorHandle), query) ||
			strings.Contains(strings.ToLower(item.CreatorDisplayName), query)
	case models.FollowHashtag:
		want := strings.TrimPrefix(query, "#")
		for _, tag := range extractHashtags(item.Title + " " + item.Caption) {
			if tag == want {
				return true
			}
		}
		return false
	case models.FollowAudio:
		for key, value := range item.MediaMeta {
			if !strings.HasPrefix(key, "audio_") && !strings.HasPrefix(key, "sound_") && key != "music" {
				continue
			}
			if str, ok := value.(string); ok && strings.Contains(strings.ToLower(str), query) {
				return true
			}
		}
		return false
	default: // keyword: substring over all text fields
		blob := strings.ToLower(strings.Join([]string{
			item.Title, item.Caption, item.CreatorHandle, item.CreatorDisplayName, item.URL,
		}, " "))
		return strings.Contains(blob, query)
	}
}

// extractHashtags pulls normalized lowercase tags from a text blob.
func extractHashtags(blob string) []string {
	var tags []string
	for _, token := range strings.Fields(blob) {
		if !strings.HasPrefix(token, "#") {
			continue
		}
		tag := strings.ToLower(strings.Trim(strings.TrimPrefix(token, "#"), ".,!?:;"))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// sortDiscovered sorts stably: alphabetical by item ID first, then a
// stable sort by the requested key, so equal keys keep a fixed order.
func sortDiscovered(items []models.DiscoveredItem, sortBy, direction string) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	desc := !strings.EqualFold(direction, "asc")
	key := func(it models.DiscoveredItem) float64 {
		switch sortBy {
		case "views_per_hour":
			return it.ViewsPerHour
		case "engagement_rate":
			return it.EngagementRate
		case "views":
			return float64(it.Metrics.Views)
		case "likes":
			return float64(it.Metrics.Likes)
		case "posted_at":
			if it.PublishedAt != nil {
				return float64(it.PublishedAt.Unix())
			}
			return float64(it.CreatedAt.Unix())
		case "created_at":
			return float64(it.CreatedAt.Unix())
		default: // trending_score
			return it.TrendingScore
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return key(items[i]) > key(items[j])
		}
		return key(items[i]) < key(items[j])
	})
}
