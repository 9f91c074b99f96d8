// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// credits.go - Credit Ledger Database Operations
//
// The ledger is append-only. balance_after on each entry is the running
// sum of delta_credits for the user at append time; it is never recomputed.
// Per-user serialization of the read-modify-append sequence lives in the
// credits service, not here.

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

// AppendLedgerEntry writes one ledger entry inside a transaction, computing
// balance_after from the current sum.
func (db *DB) AppendLedgerEntry(ctx context.Context, entry *models.CreditLedgerEntry) (*models.CreditLedgerEntry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta_credits), 0) FROM credit_ledger WHERE user_id = ?`,
		entry.UserID).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger balance: %w", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.BalanceAfter = balance + entry.DeltaCredits
	entry.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credit_ledger (
			id, user_id, entry_type, delta_credits, balance_after, reason,
			reference_type, reference_id, billing_provider, billing_reference,
			period_key, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, string(entry.EntryType), entry.DeltaCredits,
		entry.BalanceAfter, entry.Reason,
		nullString(entry.ReferenceType), nullString(entry.ReferenceID),
		nullString(entry.BillingProvider), nullString(entry.BillingReference),
		nullString(entry.PeriodKey), entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ledger entry: %w", err)
	}
	return entry, nil
}

// LedgerBalance returns the current balance for a user.
func (db *DB) LedgerBalance(ctx context.Context, userID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var balance int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta_credits), 0) FROM credit_ledger WHERE user_id = ?`,
		userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to query ledger balance: %w", err)
	}
	return balance, nil
}

// HasGrantForPeriod reports whether a monthly_grant entry exists for the
// user and period key.
func (db *DB) HasGrantForPeriod(ctx context.Context, userID, periodKey string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credit_ledger
		 WHERE user_id = ? AND entry_type = ? AND period_key = ?`,
		userID, string(models.LedgerMonthlyGrant), periodKey).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query grant for period: %w", err)
	}
	return count > 0, nil
}

// HasLedgerReference reports whether any entry carries the billing
// reference. Refunds are gated on this to prevent double-refunding.
func (db *DB) HasLedgerReference(ctx context.Context, userID, billingReference string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credit_ledger
		 WHERE user_id = ? AND billing_reference = ?`,
		userID, billingReference).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query ledger reference: %w", err)
	}
	return count > 0, nil
}

// RecentLedgerEntries lists the newest entries for a user.
func (db *DB) RecentLedgerEntries(ctx context.Context, userID string, limit int) ([]models.CreditLedgerEntry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, entry_type, delta_credits, balance_after, reason,
		        reference_type, reference_id, billing_provider, billing_reference,
		        period_key, created_at
		 FROM credit_ledger
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.CreditLedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanLedgerEntry(rows *sql.Rows) (*models.CreditLedgerEntry, error) {
	var (
		entry     models.CreditLedgerEntry
		entryType string
		refType   sql.NullString
		refID     sql.NullString
		provider  sql.NullString
		billRef   sql.NullString
		periodKey sql.NullString
	)
	err := rows.Scan(&entry.ID, &entry.UserID, &entryType, &entry.DeltaCredits,
		&entry.BalanceAfter, &entry.Reason, &refType, &refID, &provider,
		&billRef, &periodKey, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	entry.EntryType = models.LedgerEntryType(entryType)
	entry.ReferenceType = stringVal(refType)
	entry.ReferenceID = stringVal(refID)
	entry.BillingProvider = stringVal(provider)
	entry.BillingReference = stringVal(billRef)
	entry.PeriodKey = stringVal(periodKey)
	return &entry, nil
}
