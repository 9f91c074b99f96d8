// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package research

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	json "github.com/goccy/go-json"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/models"
)

// exportTokenTTL bounds how long a signed download URL stays valid.
const exportTokenTTL = 30 * time.Minute

// exportTokenPurpose tags export claims so session tokens cannot be
// replayed against the download endpoint.
const exportTokenPurpose = "export_download"

// ExportSigner mints and verifies HMAC download tokens with claims
// {sub, export_id, exp, purpose}.
type ExportSigner struct {
	secret []byte
}

// NewExportSigner builds a signer over the shared JWT secret.
func NewExportSigner(secret string) *ExportSigner {
	return &ExportSigner{secret: []byte(secret)}
}

type exportClaims struct {
	ExportID string `json:"export_id"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// Sign mints a download token for one export.
func (s *ExportSigner) Sign(userID, exportID string) (string, error) {
	now := time.Now().UTC()
	claims := exportClaims{
		ExportID: exportID,
		Purpose:  exportTokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(exportTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature, expiry, purpose, and export binding, and
// returns the owning user ID.
func (s *ExportSigner) Verify(token, exportID string) (string, error) {
	var claims exportClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", apperr.Unauthenticated("download token is invalid or expired")
	}
	if claims.Purpose != exportTokenPurpose {
		return "", apperr.Forbidden("token purpose mismatch")
	}
	if claims.ExportID != exportID {
		return "", apperr.Forbidden("token does not match this export")
	}
	return claims.Subject, nil
}

// Export materializes a collection (or the whole corpus) as a csv or json
// file and returns the export row plus a signed download token.
func (s *Service) Export(ctx context.Context, userID, collectionID, format string) (*models.ResearchExport, string, error) {
	if format != "csv" && format != "json" {
		return nil, "", apperr.BadRequest("format must be csv or json")
	}
	if collectionID != "" {
		if _, err := s.store.GetCollection(ctx, userID, collectionID); err != nil {
			return nil, "", err
		}
	}

	items, err := s.collectAll(ctx, userID, collectionID)
	if err != nil {
		return nil, "", err
	}

	exportDir := filepath.Join(s.exportRoot, clients.SafeFilename(userID), "exports")
	if err := os.MkdirAll(exportDir, 0o750); err != nil {
		return nil, "", fmt.Errorf("failed to create export dir: %w", err)
	}

	fileName := fmt.Sprintf("research_export_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	filePath := filepath.Join(exportDir, fileName)
	if format == "csv" {
		err = writeCSVExport(filePath, items)
	} else {
		err = writeJSONExport(filePath, items)
	}
	if err != nil {
		return nil, "", err
	}

	export := &models.ResearchExport{
		UserID:       userID,
		CollectionID: collectionID,
		Format:       format,
		FilePath:     filePath,
		FileName:     fileName,
		ItemCount:    len(items),
	}
	if err := s.store.CreateExport(ctx, export); err != nil {
		_ = os.Remove(filePath)
		return nil, "", err
	}

	token, err := s.signer.Sign(userID, export.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign download token: %w", err)
	}
	return export, token, nil
}

// ResolveDownload verifies a token against an export and returns the
// export row for streaming.
func (s *Service) ResolveDownload(ctx context.Context, exportID, token string) (*models.ResearchExport, error) {
	userID, err := s.signer.Verify(token, exportID)
	if err != nil {
		return nil, err
	}
	return s.store.GetExport(ctx, userID, exportID)
}

// collectAll pages through the corpus; exports are not page-bounded.
func (s *Service) collectAll(ctx context.Context, userID, collectionID string) ([]models.ResearchItem, error) {
	var items []models.ResearchItem
	for page := 1; ; page++ {
		result, err := s.store.SearchResearchItems(ctx, userID, models.ItemSearchFilters{
			CollectionID: collectionID,
			Page:         page,
			Limit:        100,
			SortBy:       "created_at",
		})
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if page >= result.TotalPages || len(result.Items) == 0 {
			break
		}
	}
	return items, nil
}

var exportCSVHeader = []string{
	"id", "platform", "url", "title", "caption", "creator_handle",
	"creator_display_name", "views", "likes", "comments", "shares", "saves",
	"published_at", "created_at",
}

func writeCSVExport(path string, items []models.ResearchItem) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(exportCSVHeader); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, item := range items {
		published := ""
		if item.PublishedAt != nil {
			published = item.PublishedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			item.ID, string(item.Platform), item.URL, item.Title, item.Caption,
			item.CreatorHandle, item.CreatorDisplayName,
			strconv.FormatInt(item.Metrics.Views, 10),
			strconv.FormatInt(item.Metrics.Likes, 10),
			strconv.FormatInt(item.Metrics.Comments, 10),
			strconv.FormatInt(item.Metrics.Shares, 10),
			strconv.FormatInt(item.Metrics.Saves, 10),
			published,
			item.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSONExport(path string, items []models.ResearchItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
