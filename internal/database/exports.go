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

// CreateExport records a generated export file.
func (db *DB) CreateExport(ctx context.Context, e *models.ResearchExport) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO research_exports (id, user_id, collection_id, format, file_path, file_name, item_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, nullString(e.CollectionID), e.Format, e.FilePath,
		e.FileName, e.ItemCount, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}
	return nil
}

// GetExport retrieves an export scoped to its owner.
func (db *DB) GetExport(ctx context.Context, userID, id string) (*models.ResearchExport, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		e            models.ResearchExport
		collectionID sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, collection_id, format, file_path, file_name, item_count, created_at
		 FROM research_exports WHERE id = ? AND user_id = ?`,
		id, userID).
		Scan(&e.ID, &e.UserID, &collectionID, &e.Format, &e.FilePath, &e.FileName,
			&e.ItemCount, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query export: %w", err)
	}
	e.CollectionID = stringVal(collectionID)
	return &e, nil
}
