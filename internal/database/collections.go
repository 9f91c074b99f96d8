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

// DefaultCollectionName is the per-user system collection.
const DefaultCollectionName = "Default Collection"

// CreateCollection inserts a new research collection.
func (db *DB) CreateCollection(ctx context.Context, c *models.ResearchCollection) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO research_collections (id, user_id, name, platform, is_system, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Platform), c.IsSystem, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	return nil
}

// EnsureDefaultCollection returns the user's system collection for the
// platform, creating it on first use.
func (db *DB) EnsureDefaultCollection(ctx context.Context, userID string, platform models.Platform) (*models.ResearchCollection, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var c models.ResearchCollection
	var platformStr string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, platform, is_system, created_at
		 FROM research_collections
		 WHERE user_id = ? AND platform = ? AND is_system = TRUE
		 LIMIT 1`,
		userID, string(platform)).
		Scan(&c.ID, &c.UserID, &c.Name, &platformStr, &c.IsSystem, &c.CreatedAt)
	if err == nil {
		c.Platform = models.Platform(platformStr)
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query default collection: %w", err)
	}

	created := &models.ResearchCollection{
		UserID:   userID,
		Name:     DefaultCollectionName,
		Platform: platform,
		IsSystem: true,
	}
	if err := db.CreateCollection(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// GetCollection retrieves a collection scoped to its owner.
func (db *DB) GetCollection(ctx context.Context, userID, id string) (*models.ResearchCollection, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var c models.ResearchCollection
	var platformStr string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, platform, is_system, created_at
		 FROM research_collections WHERE id = ? AND user_id = ?`,
		id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &platformStr, &c.IsSystem, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	c.Platform = models.Platform(platformStr)
	return &c, nil
}

// ListCollections lists all collections for a user, system first.
func (db *DB) ListCollections(ctx context.Context, userID string) ([]models.ResearchCollection, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, name, platform, is_system, created_at
		 FROM research_collections
		 WHERE user_id = ?
		 ORDER BY is_system DESC, created_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var collections []models.ResearchCollection
	for rows.Next() {
		var c models.ResearchCollection
		var platformStr string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &platformStr, &c.IsSystem, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		c.Platform = models.Platform(platformStr)
		collections = append(collections, c)
	}
	return collections, rows.Err()
}
