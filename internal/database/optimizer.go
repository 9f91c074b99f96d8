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

// CreateVariantBatch persists a generated batch with its variants.
func (db *DB) CreateVariantBatch(ctx context.Context, batch *models.VariantBatch) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	request, err := marshalJSON(batch.Request)
	if err != nil {
		return err
	}
	variants, err := marshalJSON(batch.Variants)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO variant_batches (id, user_id, source_item_id, platform, topic, request, variants, selected_variant_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.UserID, nullString(batch.SourceItemID), string(batch.Platform),
		batch.Topic, request, variants, nullString(batch.SelectedVariantID),
		batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert variant batch: %w", err)
	}
	return nil
}

// GetVariantBatch retrieves a batch scoped to its owner.
func (db *DB) GetVariantBatch(ctx context.Context, userID, id string) (*models.VariantBatch, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, source_item_id, platform, topic, request, variants, selected_variant_id, created_at
		 FROM variant_batches WHERE id = ? AND user_id = ?`, id, userID)
	return scanVariantBatch(row)
}

func scanVariantBatch(row rowScanner) (*models.VariantBatch, error) {
	var (
		batch      models.VariantBatch
		sourceItem sql.NullString
		platform   string
		request    sql.NullString
		variants   sql.NullString
		selected   sql.NullString
	)
	err := row.Scan(&batch.ID, &batch.UserID, &sourceItem, &platform, &batch.Topic,
		&request, &variants, &selected, &batch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan variant batch: %w", err)
	}
	batch.SourceItemID = stringVal(sourceItem)
	batch.Platform = models.Platform(platform)
	batch.Request = models.JSONMap{}
	if err := unmarshalJSON(request, &batch.Request); err != nil {
		return nil, err
	}
	batch.Variants = []models.ScriptVariant{}
	if err := unmarshalJSON(variants, &batch.Variants); err != nil {
		return nil, err
	}
	batch.SelectedVariantID = stringVal(selected)
	return &batch, nil
}

// CreateDraftSnapshot persists a rescored draft.
func (db *DB) CreateDraftSnapshot(ctx context.Context, d *models.DraftSnapshot) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	rankings, err := marshalJSON(d.DetectorRankings)
	if err != nil {
		return err
	}
	actions, err := marshalJSON(d.NextActions)
	if err != nil {
		return err
	}
	edits, err := marshalJSON(d.LineLevelEdits)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO draft_snapshots (
			id, user_id, platform, source_item_id, variant_id, script_text,
			baseline_score, rescored_score, delta_score, detector_rankings,
			next_actions, line_level_edits, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, string(d.Platform), nullString(d.SourceItemID),
		nullString(d.VariantID), d.ScriptText, nullFloat(d.BaselineScore),
		d.RescoredScore, nullFloat(d.DeltaScore), rankings, actions, edits,
		d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert draft snapshot: %w", err)
	}
	return nil
}

const draftColumns = `id, user_id, platform, source_item_id, variant_id, script_text,
	baseline_score, rescored_score, delta_score, detector_rankings, next_actions,
	line_level_edits, created_at`

// GetDraftSnapshot retrieves a draft scoped to its owner.
func (db *DB) GetDraftSnapshot(ctx context.Context, userID, id string) (*models.DraftSnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM draft_snapshots WHERE id = ? AND user_id = ?`,
		id, userID)
	return scanDraftSnapshot(row)
}

// LatestDraftSnapshot finds the newest draft for a user, optionally scoped
// to a source item.
func (db *DB) LatestDraftSnapshot(ctx context.Context, userID, sourceItemID string) (*models.DraftSnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + draftColumns + ` FROM draft_snapshots WHERE user_id = ?`
	args := []any{userID}
	if sourceItemID != "" {
		query += ` AND source_item_id = ?`
		args = append(args, sourceItemID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	row := db.conn.QueryRowContext(ctx, query, args...)
	return scanDraftSnapshot(row)
}

// ListDraftSnapshots lists drafts for a user, newest first.
func (db *DB) ListDraftSnapshots(ctx context.Context, userID string, limit int) ([]models.DraftSnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM draft_snapshots WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list draft snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var drafts []models.DraftSnapshot
	for rows.Next() {
		d, err := scanDraftSnapshot(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, rows.Err()
}

func scanDraftSnapshot(row rowScanner) (*models.DraftSnapshot, error) {
	var (
		d          models.DraftSnapshot
		platform   string
		sourceItem sql.NullString
		variantID  sql.NullString
		baseline   sql.NullFloat64
		delta      sql.NullFloat64
		rankings   sql.NullString
		actions    sql.NullString
		edits      sql.NullString
	)
	err := row.Scan(&d.ID, &d.UserID, &platform, &sourceItem, &variantID,
		&d.ScriptText, &baseline, &d.RescoredScore, &delta, &rankings,
		&actions, &edits, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan draft snapshot: %w", err)
	}
	d.Platform = models.Platform(platform)
	d.SourceItemID = stringVal(sourceItem)
	d.VariantID = stringVal(variantID)
	d.BaselineScore = floatPtr(baseline)
	d.DeltaScore = floatPtr(delta)
	d.DetectorRankings = []models.DetectorRanking{}
	if err := unmarshalJSON(rankings, &d.DetectorRankings); err != nil {
		return nil, err
	}
	d.NextActions = []models.NextAction{}
	if err := unmarshalJSON(actions, &d.NextActions); err != nil {
		return nil, err
	}
	d.LineLevelEdits = []models.LineEdit{}
	if err := unmarshalJSON(edits, &d.LineLevelEdits); err != nil {
		return nil, err
	}
	return &d, nil
}

// nullFloat converts an optional float into a driver-friendly value.
func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
