// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/models"
)

// UpsertBlueprintSnapshot replaces the user's single blueprint snapshot.
func (db *DB) UpsertBlueprintSnapshot(ctx context.Context, s *models.BlueprintSnapshot) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now().UTC()
	}

	var payload any
	if s.Payload != nil {
		raw, err := marshalJSON(s.Payload)
		if err != nil {
			return err
		}
		payload = raw
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin blueprint transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM blueprint_snapshots WHERE user_id = ?`, s.UserID); err != nil {
		return fmt.Errorf("failed to clear blueprint snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO blueprint_snapshots (id, user_id, payload, competitor_signature, generated_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, payload, s.CompetitorSignature, s.GeneratedAt,
		nullString(s.LastError))
	if err != nil {
		return fmt.Errorf("failed to insert blueprint snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit blueprint snapshot: %w", err)
	}
	return nil
}

// GetBlueprintSnapshot retrieves the user's blueprint snapshot.
func (db *DB) GetBlueprintSnapshot(ctx context.Context, userID string) (*models.BlueprintSnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		s         models.BlueprintSnapshot
		payload   sql.NullString
		lastError sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, payload, competitor_signature, generated_at, last_error
		 FROM blueprint_snapshots WHERE user_id = ?`, userID).
		Scan(&s.ID, &s.UserID, &payload, &s.CompetitorSignature, &s.GeneratedAt, &lastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query blueprint snapshot: %w", err)
	}
	if payload.Valid && payload.String != "" {
		s.Payload = &models.BlueprintPayload{}
		if err := unmarshalJSON(payload, s.Payload); err != nil {
			return nil, err
		}
	}
	s.LastError = stringVal(lastError)
	return &s, nil
}

// SetBlueprintError records a refresh failure without touching the payload.
func (db *DB) SetBlueprintError(ctx context.Context, userID, lastError string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE blueprint_snapshots SET last_error = ? WHERE user_id = ?`,
		lastError, userID)
	if err != nil {
		return fmt.Errorf("failed to set blueprint error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		snapshot := &models.BlueprintSnapshot{
			UserID:              userID,
			CompetitorSignature: "",
			LastError:           lastError,
		}
		return db.UpsertBlueprintSnapshot(ctx, snapshot)
	}
	return nil
}

// ============================================================================
// Competitors
// ============================================================================

// CreateCompetitor inserts a tracked competitor.
func (db *DB) CreateCompetitor(ctx context.Context, c *models.Competitor) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO competitors (id, user_id, platform, external_id, handle, display_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, string(c.Platform), c.ExternalID, nullString(c.Handle),
		nullString(c.DisplayName), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert competitor: %w", err)
	}
	return nil
}

// ListCompetitors lists the user's competitors for a platform.
func (db *DB) ListCompetitors(ctx context.Context, userID string, platform models.Platform) ([]models.Competitor, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, platform, external_id, handle, display_name, created_at
		 FROM competitors WHERE user_id = ? AND platform = ?
		 ORDER BY created_at ASC`, userID, string(platform))
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var competitors []models.Competitor
	for rows.Next() {
		var (
			c           models.Competitor
			platformStr string
			handle      sql.NullString
			displayName sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.UserID, &platformStr, &c.ExternalID,
			&handle, &displayName, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		c.Platform = models.Platform(platformStr)
		c.Handle = stringVal(handle)
		c.DisplayName = stringVal(displayName)
		competitors = append(competitors, c)
	}
	return competitors, rows.Err()
}

// UpsertCompetitorVideo inserts or refreshes a benchmarked video by
// (user, platform, external_id).
func (db *DB) UpsertCompetitorVideo(ctx context.Context, v *models.CompetitorVideo) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE competitor_videos SET title = ?, duration_s = ?, views = ?, likes = ?, comments = ?, shares = ?, saves = ?, published_at = ?
		 WHERE user_id = ? AND platform = ? AND external_id = ?`,
		nullString(v.Title), v.DurationS, v.Metrics.Views, v.Metrics.Likes,
		v.Metrics.Comments, v.Metrics.Shares, v.Metrics.Saves,
		nullTime(v.PublishedAt), v.UserID, string(v.Platform), v.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to update competitor video: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO competitor_videos (id, user_id, competitor_id, platform, external_id, title, duration_s, views, likes, comments, shares, saves, published_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.CompetitorID, string(v.Platform), v.ExternalID,
		nullString(v.Title), v.DurationS, v.Metrics.Views, v.Metrics.Likes,
		v.Metrics.Comments, v.Metrics.Shares, v.Metrics.Saves,
		nullTime(v.PublishedAt), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert competitor video: %w", err)
	}
	return nil
}

// ListCompetitorVideos lists competitor videos for a platform, newest first.
func (db *DB) ListCompetitorVideos(ctx context.Context, userID string, platform models.Platform, limit int) ([]models.CompetitorVideo, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 200
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, competitor_id, platform, external_id, title, duration_s, views, likes, comments, shares, saves, published_at, created_at
		 FROM competitor_videos WHERE user_id = ? AND platform = ?
		 ORDER BY published_at DESC NULLS LAST LIMIT ?`,
		userID, string(platform), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitor videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var videos []models.CompetitorVideo
	for rows.Next() {
		var (
			v           models.CompetitorVideo
			platformStr string
			title       sql.NullString
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&v.ID, &v.UserID, &v.CompetitorID, &platformStr,
			&v.ExternalID, &title, &v.DurationS, &v.Metrics.Views,
			&v.Metrics.Likes, &v.Metrics.Comments, &v.Metrics.Shares,
			&v.Metrics.Saves, &publishedAt, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan competitor video: %w", err)
		}
		v.Platform = models.Platform(platformStr)
		v.Title = stringVal(title)
		v.PublishedAt = timePtr(publishedAt)
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
