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

const auditColumns = `id, user_id, status, progress, input_json, output_json, error_message, created_at, completed_at`

// CreateAudit inserts a new audit in pending state.
func (db *DB) CreateAudit(ctx context.Context, audit *models.Audit) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	if audit.Status == "" {
		audit.Status = models.AuditPending
	}
	if audit.Progress == "" {
		audit.Progress = models.ProgressFor(audit.Status)
	}

	inputJSON, err := marshalJSON(audit.Input)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO audits (id, user_id, status, progress, input_json, output_json, error_message, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		audit.ID, audit.UserID, string(audit.Status), audit.Progress, inputJSON,
		nil, nullString(audit.ErrorMessage), audit.CreatedAt, nullTime(audit.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert audit: %w", err)
	}
	return nil
}

// GetAudit retrieves an audit scoped to its owner.
func (db *DB) GetAudit(ctx context.Context, userID, id string) (*models.Audit, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE id = ? AND user_id = ?`, id, userID)
	return scanAudit(row)
}

// GetAuditAny retrieves an audit without owner scoping. Used by the queue
// worker and share-link resolution.
func (db *DB) GetAuditAny(ctx context.Context, id string) (*models.Audit, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE id = ?`, id)
	return scanAudit(row)
}

// LatestCompletedAudit finds the newest completed audit for a user.
func (db *DB) LatestCompletedAudit(ctx context.Context, userID string) (*models.Audit, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits
		 WHERE user_id = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, string(models.AuditCompleted))
	return scanAudit(row)
}

// ListAudits lists audits for a user, newest first.
func (db *DB) ListAudits(ctx context.Context, userID string, limit int) ([]models.Audit, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var audits []models.Audit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, *audit)
	}
	return audits, rows.Err()
}

// UpdateAuditProgress writes status and its canonical progress string.
// Transitions persist before the work for that stage begins.
func (db *DB) UpdateAuditProgress(ctx context.Context, id string, status models.AuditStatus) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE audits SET status = ?, progress = ? WHERE id = ?`,
		string(status), models.ProgressFor(status), id)
	if err != nil {
		return fmt.Errorf("failed to update audit progress: %w", err)
	}
	return nil
}

// CompleteAudit persists the output bundle and marks completion.
func (db *DB) CompleteAudit(ctx context.Context, id string, output *models.AuditOutput) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	outputJSON, err := marshalJSON(output)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		`UPDATE audits SET status = ?, progress = '100', output_json = ?, completed_at = ? WHERE id = ?`,
		string(models.AuditCompleted), outputJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete audit: %w", err)
	}
	return nil
}

// FailAudit marks an audit failed with a message.
func (db *DB) FailAudit(ctx context.Context, id, errorMessage string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE audits SET status = ?, progress = '100', error_message = ?, completed_at = ? WHERE id = ?`,
		string(models.AuditFailed), errorMessage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to fail audit: %w", err)
	}
	return nil
}

func scanAudit(row rowScanner) (*models.Audit, error) {
	var (
		audit     models.Audit
		status    string
		inputRaw  sql.NullString
		outputRaw sql.NullString
		errMsg    sql.NullString
		completed sql.NullTime
	)
	err := row.Scan(&audit.ID, &audit.UserID, &status, &audit.Progress,
		&inputRaw, &outputRaw, &errMsg, &audit.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit: %w", err)
	}
	audit.Status = models.AuditStatus(status)
	if inputRaw.Valid && inputRaw.String != "" && inputRaw.String != "{}" {
		audit.Input = &models.AuditInput{}
		if err := unmarshalJSON(inputRaw, audit.Input); err != nil {
			return nil, err
		}
	}
	if outputRaw.Valid && outputRaw.String != "" && outputRaw.String != "{}" {
		audit.Output = &models.AuditOutput{}
		if err := unmarshalJSON(outputRaw, audit.Output); err != nil {
			return nil, err
		}
	}
	audit.ErrorMessage = stringVal(errMsg)
	audit.CompletedAt = timePtr(completed)
	return &audit, nil
}

// ============================================================================
// Report Share Links
// ============================================================================

// CreateShareLink inserts a share link for an audit report.
func (db *DB) CreateShareLink(ctx context.Context, link *models.ReportShareLink) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO report_share_links (id, user_id, audit_id, share_token, expires_at, last_accessed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.UserID, link.AuditID, link.ShareToken, link.ExpiresAt,
		nullTime(link.LastAccessedAt), link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert share link: %w", err)
	}
	return nil
}

// GetShareLinkByToken resolves a share link and stamps last access.
func (db *DB) GetShareLinkByToken(ctx context.Context, token string) (*models.ReportShareLink, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		link     models.ReportShareLink
		accessed sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, audit_id, share_token, expires_at, last_accessed_at, created_at
		 FROM report_share_links WHERE share_token = ?`, token).
		Scan(&link.ID, &link.UserID, &link.AuditID, &link.ShareToken,
			&link.ExpiresAt, &accessed, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query share link: %w", err)
	}
	link.LastAccessedAt = timePtr(accessed)

	now := time.Now().UTC()
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE report_share_links SET last_accessed_at = ? WHERE id = ?`, now, link.ID); err != nil {
		return nil, fmt.Errorf("failed to stamp share link access: %w", err)
	}
	return &link, nil
}
