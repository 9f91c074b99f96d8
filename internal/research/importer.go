// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package research

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

// csvImportMaxBytes caps an import file at 5 MiB.
const csvImportMaxBytes = 5 << 20

// CaptureRequest is a structured capture from the browser bookmarklet.
type CaptureRequest struct {
	Platform           models.Platform    `json:"platform" validate:"required,platform"`
	URL                string             `json:"url" validate:"required,url"`
	ExternalID         string             `json:"external_id,omitempty"`
	CreatorHandle      string             `json:"creator_handle,omitempty"`
	CreatorDisplayName string             `json:"creator_display_name,omitempty"`
	Title              string             `json:"title,omitempty"`
	Caption            string             `json:"caption,omitempty"`
	Metrics            models.ItemMetrics `json:"metrics"`
	PublishedAt        *time.Time         `json:"published_at,omitempty"`
	CollectionID       string             `json:"collection_id,omitempty"`
}

// ImportURL ingests one content URL, inferring the platform when omitted
// and enriching YouTube items via the platform-data client.
func (s *Service) ImportURL(ctx context.Context, userID string, platform models.Platform, rawURL string) (*models.ResearchItem, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, apperr.BadRequest("url is required")
	}
	if platform == "" {
		inferred, err := inferPlatform(rawURL)
		if err != nil {
			return nil, err
		}
		platform = inferred
	}

	collection, err := s.store.EnsureDefaultCollection(ctx, userID, platform)
	if err != nil {
		return nil, err
	}

	item := &models.ResearchItem{
		UserID:       userID,
		CollectionID: collection.ID,
		Platform:     platform,
		SourceType:   models.SourceManualURL,
		URL:          rawURL,
	}

	if platform == models.PlatformYouTube {
		s.enrichYouTubeItem(ctx, item, rawURL)
	}

	if err := s.store.CreateResearchItem(ctx, item); err != nil {
		return nil, err
	}
	logging.Info().
		Str("item_id", item.ID).
		Str("platform", string(platform)).
		Msg("Research item imported from url")
	return item, nil
}

// enrichYouTubeItem fills metadata from the platform-data client.
// Enrichment failures degrade to a bare URL row.
func (s *Service) enrichYouTubeItem(ctx context.Context, item *models.ResearchItem, rawURL string) {
	if s.platformData == nil || !s.platformData.Configured() {
		return
	}
	videoID := youtubeVideoID(rawURL)
	if videoID == "" {
		return
	}

	details, err := s.platformData.VideoDetails(ctx, []string{videoID})
	if err != nil || len(details) == 0 {
		logging.Warn().Err(err).Str("video_id", videoID).Msg("YouTube enrichment failed")
		return
	}

	v := details[0]
	item.ExternalID = v.ExternalID
	item.Title = v.Title
	item.CreatorHandle = v.ChannelID
	item.CreatorDisplayName = v.ChannelTitle
	item.Metrics = v.Metrics
	item.PublishedAt = v.PublishedAt
	if v.ThumbnailURL != "" || v.DurationS > 0 {
		item.MediaMeta = models.JSONMap{
			"thumbnail_url": v.ThumbnailURL,
			"duration_s":    v.DurationS,
		}
	}
}

// Capture ingests a structured bookmarklet payload.
func (s *Service) Capture(ctx context.Context, userID string, req *CaptureRequest) (*models.ResearchItem, error) {
	if req == nil || strings.TrimSpace(req.URL) == "" {
		return nil, apperr.BadRequest("url is required")
	}
	if req.Platform == "" {
		return nil, apperr.BadRequest("platform is required")
	}

	collectionID := req.CollectionID
	if collectionID == "" {
		collection, err := s.store.EnsureDefaultCollection(ctx, userID, req.Platform)
		if err != nil {
			return nil, err
		}
		collectionID = collection.ID
	} else if _, err := s.store.GetCollection(ctx, userID, collectionID); err != nil {
		return nil, err
	}

	item := &models.ResearchItem{
		UserID:             userID,
		CollectionID:       collectionID,
		Platform:           req.Platform,
		SourceType:         models.SourceBrowserCapture,
		URL:                req.URL,
		ExternalID:         req.ExternalID,
		CreatorHandle:      req.CreatorHandle,
		CreatorDisplayName: req.CreatorDisplayName,
		Title:              req.Title,
		Caption:            req.Caption,
		Metrics:            req.Metrics,
		PublishedAt:        req.PublishedAt,
	}
	if err := s.store.CreateResearchItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// CSVImportResult summarizes one import run.
type CSVImportResult struct {
	Collection *models.ResearchCollection `json:"collection"`
	Imported   int                        `json:"imported"`
	Skipped    int                        `json:"skipped"`
}

// ImportCSV creates a new collection and inserts one item per row. Files
// over 5 MiB are rejected.
func (s *Service) ImportCSV(ctx context.Context, userID string, platform models.Platform, collectionName string, size int64, file io.Reader) (*CSVImportResult, error) {
	if size > csvImportMaxBytes {
		return nil, apperr.New(apperr.KindPayloadTooLarge, "csv file exceeds 5 MiB")
	}
	if platform == "" {
		return nil, apperr.BadRequest("platform is required")
	}
	if strings.TrimSpace(collectionName) == "" {
		collectionName = fmt.Sprintf("CSV Import %s", time.Now().UTC().Format("2006-01-02 15:04"))
	}

	reader := csv.NewReader(io.LimitReader(file, csvImportMaxBytes+1))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperr.BadRequest("csv file is empty or unreadable")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["url"]; !ok {
		if _, ok := columns["title"]; !ok {
			return nil, apperr.BadRequest("csv must contain a url or title column")
		}
	}

	collection := &models.ResearchCollection{
		UserID:   userID,
		Name:     collectionName,
		Platform: platform,
	}
	if err := s.store.CreateCollection(ctx, collection); err != nil {
		return nil, err
	}

	result := &CSVImportResult{Collection: collection}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}

		field := func(name string) string {
			if i, ok := columns[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		item := &models.ResearchItem{
			UserID:             userID,
			CollectionID:       collection.ID,
			Platform:           platform,
			SourceType:         models.SourceCSVImport,
			URL:                field("url"),
			ExternalID:         field("external_id"),
			CreatorHandle:      field("creator_handle"),
			CreatorDisplayName: field("creator_display_name"),
			Title:              field("title"),
			Caption:            field("caption"),
			Metrics: models.ItemMetrics{
				Views:    coerceCount(field("views")),
				Likes:    coerceCount(field("likes")),
				Comments: coerceCount(field("comments")),
				Shares:   coerceCount(field("shares")),
				Saves:    coerceCount(field("saves")),
			},
		}
		if item.URL == "" && item.Title == "" {
			result.Skipped++
			continue
		}
		if raw := field("posted_at"); raw != "" {
			if ts, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
				item.PublishedAt = &ts
			}
		}

		if err := s.store.CreateResearchItem(ctx, item); err != nil {
			result.Skipped++
			continue
		}
		result.Imported++
	}

	logging.Info().
		Str("collection_id", collection.ID).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("CSV import finished")
	return result, nil
}

// coerceCount parses a numeric metric cell, tolerating separators and
// decimals. Unparseable cells coerce to 0.
func coerceCount(raw string) int64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f)
	}
	return 0
}
