// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package research stores and searches the cross-platform content corpus:
// manual URL imports, browser captures, CSV imports, filtered search, and
// signed-URL exports.
package research

import (
	"context"
	"net/url"
	"strings"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/models"
)

// Store is the persistence surface the research corpus needs.
type Store interface {
	CreateResearchItem(ctx context.Context, item *models.ResearchItem) error
	GetResearchItem(ctx context.Context, userID, id string) (*models.ResearchItem, error)
	SearchResearchItems(ctx context.Context, userID string, f models.ItemSearchFilters) (*models.ItemPage, error)
	CreateCollection(ctx context.Context, c *models.ResearchCollection) error
	EnsureDefaultCollection(ctx context.Context, userID string, platform models.Platform) (*models.ResearchCollection, error)
	GetCollection(ctx context.Context, userID, id string) (*models.ResearchCollection, error)
	ListCollections(ctx context.Context, userID string) ([]models.ResearchCollection, error)
	CreateExport(ctx context.Context, e *models.ResearchExport) error
	GetExport(ctx context.Context, userID, id string) (*models.ResearchExport, error)
}

// CreditLedger is the slice of the credits service searches consume.
type CreditLedger interface {
	ConsumeOp(ctx context.Context, userID, op, referenceType, referenceID string) (*models.ConsumeResult, error)
}

// Service is the research corpus front.
type Service struct {
	store        Store
	platformData clients.PlatformDataClient
	credits      CreditLedger
	signer       *ExportSigner
	exportRoot   string
}

// NewService builds the research service. platformData may be nil; URL
// imports then skip enrichment.
func NewService(store Store, platformData clients.PlatformDataClient, credits CreditLedger,
	security *config.SecurityConfig, uploads *config.UploadsConfig) *Service {
	return &Service{
		store:        store,
		platformData: platformData,
		credits:      credits,
		signer:       NewExportSigner(security.JWTSecret),
		exportRoot:   uploads.Dir,
	}
}

// Search runs a filtered corpus query. Each search debits credits.
func (s *Service) Search(ctx context.Context, userID string, f models.ItemSearchFilters) (*models.ItemPage, error) {
	if _, err := s.credits.ConsumeOp(ctx, userID, models.CreditOpResearchSearch, "research_search", ""); err != nil {
		return nil, err
	}
	return s.store.SearchResearchItems(ctx, userID, f)
}

// GetItem returns one item scoped to its owner.
func (s *Service) GetItem(ctx context.Context, userID, id string) (*models.ResearchItem, error) {
	return s.store.GetResearchItem(ctx, userID, id)
}

// ListCollections returns the user's collections.
func (s *Service) ListCollections(ctx context.Context, userID string) ([]models.ResearchCollection, error) {
	return s.store.ListCollections(ctx, userID)
}

// inferPlatform maps a URL's host to a platform.
func inferPlatform(rawURL string) (models.Platform, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", apperr.BadRequest("url is not valid")
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	switch {
	case host == "youtu.be" || strings.HasSuffix(host, "youtube.com"):
		return models.PlatformYouTube, nil
	case strings.HasSuffix(host, "instagram.com"):
		return models.PlatformInstagram, nil
	case strings.HasSuffix(host, "tiktok.com"):
		return models.PlatformTikTok, nil
	default:
		return "", apperr.BadRequest("platform could not be inferred from url; pass it explicitly")
	}
}

// youtubeVideoID extracts the video ID from watch, share, and shorts URLs.
func youtubeVideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Host, "youtu.be") {
		return strings.Trim(u.Path, "/")
	}
	if id := u.Query().Get("v"); id != "" {
		return id
	}
	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if strings.HasPrefix(u.Path, prefix) {
			rest := strings.TrimPrefix(u.Path, prefix)
			if i := strings.Index(rest, "/"); i >= 0 {
				rest = rest[:i]
			}
			return rest
		}
	}
	return ""
}
