// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// feed.go - Feed-Loop Database Operations
//
// Stores for source follows, auto-ingest runs, repost packages, and the
// append-only telemetry event log.

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

// ============================================================================
// Feed Source Follows
// ============================================================================

// UpsertFollow creates a follow or updates the existing row matching
// (user, platform, mode, query). Returns the row and whether it was created.
func (db *DB) UpsertFollow(ctx context.Context, f *models.FeedSourceFollow) (*models.FeedSourceFollow, bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()

	existing, err := db.findFollow(ctx, f.UserID, f.Platform, f.Mode, f.Query)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if existing != nil {
		f.ID = existing.ID
		f.CreatedAt = existing.CreatedAt
		f.UpdatedAt = now
		_, err = db.conn.ExecContext(ctx,
			`UPDATE feed_source_follows SET
				timeframe = ?, sort_by = ?, sort_direction = ?, item_limit = ?,
				cadence_minutes = ?, is_active = ?, next_run_at = ?, updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			f.Timeframe, nullString(f.SortBy), nullString(f.SortDirection), f.Limit,
			f.CadenceMinutes, f.IsActive, nullTime(f.NextRunAt), f.UpdatedAt,
			f.ID, f.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update follow: %w", err)
		}
		return f, false, nil
	}

	f.ID = uuid.New().String()
	f.CreatedAt = now
	f.UpdatedAt = now
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO feed_source_follows (
			id, user_id, platform, mode, query, timeframe, sort_by, sort_direction,
			item_limit, cadence_minutes, is_active, last_run_at, next_run_at,
			last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, string(f.Platform), string(f.Mode), f.Query, f.Timeframe,
		nullString(f.SortBy), nullString(f.SortDirection), f.Limit, f.CadenceMinutes,
		f.IsActive, nullTime(f.LastRunAt), nullTime(f.NextRunAt),
		nullString(f.LastError), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert follow: %w", err)
	}
	return f, true, nil
}

func (db *DB) findFollow(ctx context.Context, userID string, platform models.Platform, mode models.FollowMode, query string) (*models.FeedSourceFollow, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+followColumns+` FROM feed_source_follows
		 WHERE user_id = ? AND platform = ? AND mode = ? AND query = ?`,
		userID, string(platform), string(mode), query)
	return scanFollow(row)
}

const followColumns = `id, user_id, platform, mode, query, timeframe, sort_by, sort_direction,
	item_limit, cadence_minutes, is_active, last_run_at, next_run_at, last_error,
	created_at, updated_at`

// GetFollow retrieves a follow scoped to its owner.
func (db *DB) GetFollow(ctx context.Context, userID, id string) (*models.FeedSourceFollow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+followColumns+` FROM feed_source_follows WHERE id = ? AND user_id = ?`,
		id, userID)
	return scanFollow(row)
}

// ListFollows lists all follows for a user.
func (db *DB) ListFollows(ctx context.Context, userID string) ([]models.FeedSourceFollow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+followColumns+` FROM feed_source_follows
		 WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list follows: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectFollows(rows)
}

// ListDueFollows lists active follows whose next_run_at is at or before now.
func (db *DB) ListDueFollows(ctx context.Context, now time.Time) ([]models.FeedSourceFollow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+followColumns+` FROM feed_source_follows
		 WHERE is_active = TRUE AND next_run_at IS NOT NULL AND next_run_at <= ?
		 ORDER BY next_run_at ASC`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list due follows: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectFollows(rows)
}

// DeleteFollow removes a follow scoped to its owner.
func (db *DB) DeleteFollow(ctx context.Context, userID, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM feed_source_follows WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFollowRun records the completion of a follow execution and schedules
// the next run.
func (db *DB) MarkFollowRun(ctx context.Context, userID, id string, lastRunAt, nextRunAt time.Time, lastError string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE feed_source_follows SET last_run_at = ?, next_run_at = ?, last_error = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		lastRunAt.UTC(), nextRunAt.UTC(), nullString(lastError), time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark follow run: %w", err)
	}
	return nil
}

func collectFollows(rows *sql.Rows) ([]models.FeedSourceFollow, error) {
	var follows []models.FeedSourceFollow
	for rows.Next() {
		f, err := scanFollow(rows)
		if err != nil {
			return nil, err
		}
		follows = append(follows, *f)
	}
	return follows, rows.Err()
}

func scanFollow(row rowScanner) (*models.FeedSourceFollow, error) {
	var (
		f         models.FeedSourceFollow
		platform  string
		mode      string
		sortBy    sql.NullString
		sortDir   sql.NullString
		lastRun   sql.NullTime
		nextRun   sql.NullTime
		lastError sql.NullString
	)
	err := row.Scan(&f.ID, &f.UserID, &platform, &mode, &f.Query, &f.Timeframe,
		&sortBy, &sortDir, &f.Limit, &f.CadenceMinutes, &f.IsActive,
		&lastRun, &nextRun, &lastError, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan follow: %w", err)
	}
	f.Platform = models.Platform(platform)
	f.Mode = models.FollowMode(mode)
	f.SortBy = stringVal(sortBy)
	f.SortDirection = stringVal(sortDir)
	f.LastRunAt = timePtr(lastRun)
	f.NextRunAt = timePtr(nextRun)
	f.LastError = stringVal(lastError)
	return &f, nil
}

// ============================================================================
// Auto-Ingest Runs
// ============================================================================

// CreateIngestRun appends a new run in running state.
func (db *DB) CreateIngestRun(ctx context.Context, run *models.FeedAutoIngestRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	itemIDs, err := marshalJSON(run.ItemIDs)
	if err != nil {
		return err
	}
	if run.ItemIDs == nil {
		itemIDs = "[]"
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO feed_auto_ingest_runs (id, follow_id, user_id, status, item_count, item_ids, error_message, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.FollowID, run.UserID, string(run.Status), run.ItemCount,
		itemIDs, nullString(run.ErrorMessage), run.StartedAt, nullTime(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert ingest run: %w", err)
	}
	return nil
}

// FinishIngestRun transitions a run to completed or failed.
func (db *DB) FinishIngestRun(ctx context.Context, run *models.FeedAutoIngestRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	itemIDs, err := marshalJSON(run.ItemIDs)
	if err != nil {
		return err
	}
	if run.ItemIDs == nil {
		itemIDs = "[]"
	}
	_, err = db.conn.ExecContext(ctx,
		`UPDATE feed_auto_ingest_runs SET status = ?, item_count = ?, item_ids = ?, error_message = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.Status), run.ItemCount, itemIDs, nullString(run.ErrorMessage),
		nullTime(run.CompletedAt), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish ingest run: %w", err)
	}
	return nil
}

// HasRunningIngestRun reports whether the follow has an in-flight run.
// Follows never overlap their own prior run.
func (db *DB) HasRunningIngestRun(ctx context.Context, followID string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_auto_ingest_runs WHERE follow_id = ? AND status = ?`,
		followID, string(models.IngestRunning)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query running ingest runs: %w", err)
	}
	return count > 0, nil
}

// ListIngestRuns lists recent runs for a user, newest first.
func (db *DB) ListIngestRuns(ctx context.Context, userID string, limit int) ([]models.FeedAutoIngestRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, follow_id, user_id, status, item_count, item_ids, error_message, started_at, completed_at
		 FROM feed_auto_ingest_runs
		 WHERE user_id = ? ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.FeedAutoIngestRun
	for rows.Next() {
		var (
			run       models.FeedAutoIngestRun
			status    string
			itemIDs   sql.NullString
			errMsg    sql.NullString
			completed sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.FollowID, &run.UserID, &status,
			&run.ItemCount, &itemIDs, &errMsg, &run.StartedAt, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		run.Status = models.IngestRunStatus(status)
		run.ItemIDs = []string{}
		if err := unmarshalJSON(itemIDs, &run.ItemIDs); err != nil {
			return nil, err
		}
		run.ErrorMessage = stringVal(errMsg)
		run.CompletedAt = timePtr(completed)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ============================================================================
// Repost Packages
// ============================================================================

// CreateRepostPackage inserts a new repost package.
func (db *DB) CreateRepostPackage(ctx context.Context, p *models.FeedRepostPackage) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	targets, err := marshalJSON(p.TargetPlatforms)
	if err != nil {
		return err
	}
	payload, err := marshalJSON(p.Package)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO feed_repost_packages (id, user_id, source_item_id, status, target_platforms, package, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.SourceItemID, string(p.Status), targets, payload,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert repost package: %w", err)
	}
	return nil
}

// GetRepostPackage retrieves a package scoped to its owner.
func (db *DB) GetRepostPackage(ctx context.Context, userID, id string) (*models.FeedRepostPackage, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, source_item_id, status, target_platforms, package, created_at, updated_at
		 FROM feed_repost_packages WHERE id = ? AND user_id = ?`, id, userID)
	return scanRepostPackage(row)
}

// ListRepostPackages lists packages for a user, optionally filtered by
// source item, newest first.
func (db *DB) ListRepostPackages(ctx context.Context, userID, sourceItemID string, limit int) ([]models.FeedRepostPackage, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, user_id, source_item_id, status, target_platforms, package, created_at, updated_at
		 FROM feed_repost_packages WHERE user_id = ?`
	args := []any{userID}
	if sourceItemID != "" {
		query += ` AND source_item_id = ?`
		args = append(args, sourceItemID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list repost packages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var packages []models.FeedRepostPackage
	for rows.Next() {
		p, err := scanRepostPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, *p)
	}
	return packages, rows.Err()
}

// UpdateRepostPackageStatus sets the status of a package.
func (db *DB) UpdateRepostPackageStatus(ctx context.Context, userID, id string, status models.RepostStatus) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE feed_repost_packages SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(status), time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update repost package status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRepostPackage(row rowScanner) (*models.FeedRepostPackage, error) {
	var (
		p       models.FeedRepostPackage
		status  string
		targets sql.NullString
		payload sql.NullString
	)
	err := row.Scan(&p.ID, &p.UserID, &p.SourceItemID, &status, &targets, &payload,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan repost package: %w", err)
	}
	p.Status = models.RepostStatus(status)
	p.TargetPlatforms = []models.Platform{}
	if err := unmarshalJSON(targets, &p.TargetPlatforms); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(payload, &p.Package); err != nil {
		return nil, err
	}
	return &p, nil
}

// ============================================================================
// Telemetry
// ============================================================================

// AppendTelemetryEvent writes one telemetry event. Callers swallow errors;
// telemetry must never break the primary workflow.
func (db *DB) AppendTelemetryEvent(ctx context.Context, e *models.FeedTelemetryEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	details, err := marshalJSON(e.Details)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO feed_telemetry_events (id, user_id, event_name, status, platform, source_item_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.EventName, e.Status, nullString(string(e.Platform)),
		nullString(e.SourceItemID), details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry event: %w", err)
	}
	return nil
}

// ListTelemetryEvents lists events for a user newer than since, newest first.
func (db *DB) ListTelemetryEvents(ctx context.Context, userID string, since time.Time, limit int) ([]models.FeedTelemetryEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 200
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, event_name, status, platform, source_item_id, details, created_at
		 FROM feed_telemetry_events
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list telemetry events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.FeedTelemetryEvent
	for rows.Next() {
		var (
			e        models.FeedTelemetryEvent
			platform sql.NullString
			itemID   sql.NullString
			details  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventName, &e.Status, &platform,
			&itemID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry event: %w", err)
		}
		e.Platform = models.Platform(stringVal(platform))
		e.SourceItemID = stringVal(itemID)
		e.Details = models.JSONMap{}
		if err := unmarshalJSON(details, &e.Details); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
