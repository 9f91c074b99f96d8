// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

// staleJobAge is how old an in-flight job must be before the startup sweep
// declares it abandoned.
const staleJobAge = 120 * time.Minute

// RecoverStaleJobs marks abandoned in-flight work as failed. Runs once at
// process startup, before workers attach to the queues.
func (db *DB) RecoverStaleJobs(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff := time.Now().UTC().Add(-staleJobAge)
	now := time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE media_download_jobs
		 SET status = ?, progress = 100, error_code = ?, error_message = 'job interrupted by process restart', completed_at = ?
		 WHERE status IN (?, ?, ?) AND created_at < ?`,
		string(models.MediaJobFailed), models.ErrCodeStalled, now,
		string(models.MediaJobQueued), string(models.MediaJobDownloading),
		string(models.MediaJobProcessing), cutoff)
	if err != nil {
		return fmt.Errorf("failed to recover stale media jobs: %w", err)
	}
	mediaCount, _ := res.RowsAffected()

	res, err = db.conn.ExecContext(ctx,
		`UPDATE feed_transcript_jobs
		 SET status = ?, progress = 100, error_code = ?, error_message = 'job interrupted by process restart', completed_at = ?
		 WHERE status IN (?, ?, ?) AND created_at < ?`,
		string(models.MediaJobFailed), models.ErrCodeStalled, now,
		string(models.MediaJobQueued), string(models.MediaJobDownloading),
		string(models.MediaJobProcessing), cutoff)
	if err != nil {
		return fmt.Errorf("failed to recover stale transcript jobs: %w", err)
	}
	transcriptCount, _ := res.RowsAffected()

	res, err = db.conn.ExecContext(ctx,
		`UPDATE audits
		 SET status = ?, progress = '100', error_message = 'audit interrupted by process restart', completed_at = ?
		 WHERE status IN (?, ?, ?, ?, ?) AND created_at < ?`,
		string(models.AuditFailed), now,
		string(models.AuditPending), string(models.AuditDownloading),
		string(models.AuditProcessingVideo), string(models.AuditProcessingAudio),
		string(models.AuditAnalyzing), cutoff)
	if err != nil {
		return fmt.Errorf("failed to recover stale audits: %w", err)
	}
	auditCount, _ := res.RowsAffected()

	if mediaCount+transcriptCount+auditCount > 0 {
		logging.Info().
			Int64("media_jobs", mediaCount).
			Int64("transcript_jobs", transcriptCount).
			Int64("audits", auditCount).
			Msg("Recovered stale in-flight jobs")
	}
	return nil
}
