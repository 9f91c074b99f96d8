// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// media.go - Media Pipeline Database Operations
//
// Stores for download jobs, materialized assets, uploads, and transcript
// jobs. Job state transitions are single-writer: only the queue worker
// that claimed a job mutates it after enqueue.

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
// Media Download Jobs
// ============================================================================

const mediaJobColumns = `id, user_id, platform, source_url, status, progress, queue_job_id,
	attempts, max_attempts, error_code, error_message, media_asset_id, upload_id,
	created_at, completed_at`

// CreateMediaJob inserts a new download job in queued state.
func (db *DB) CreateMediaJob(ctx context.Context, job *models.MediaDownloadJob) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}
	if job.Status == "" {
		job.Status = models.MediaJobQueued
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO media_download_jobs (
			id, user_id, platform, source_url, status, progress, queue_job_id,
			attempts, max_attempts, error_code, error_message, media_asset_id,
			upload_id, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, string(job.Platform), job.SourceURL, string(job.Status),
		job.Progress, nullString(job.QueueJobID), job.Attempts, job.MaxAttempts,
		nullString(job.ErrorCode), nullString(job.ErrorMessage),
		nullString(job.MediaAssetID), nullString(job.UploadID),
		job.CreatedAt, nullTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert media job: %w", err)
	}
	return nil
}

// GetMediaJob retrieves a job scoped to its owner.
func (db *DB) GetMediaJob(ctx context.Context, userID, id string) (*models.MediaDownloadJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+mediaJobColumns+` FROM media_download_jobs WHERE id = ? AND user_id = ?`,
		id, userID)
	return scanMediaJob(row)
}

// GetMediaJobAny retrieves a job without owner scoping. Used by queue
// workers, which receive the owner in the job payload.
func (db *DB) GetMediaJobAny(ctx context.Context, id string) (*models.MediaDownloadJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+mediaJobColumns+` FROM media_download_jobs WHERE id = ?`, id)
	return scanMediaJob(row)
}

// LatestMediaJobForURL finds the newest job for a source URL.
func (db *DB) LatestMediaJobForURL(ctx context.Context, userID, sourceURL string) (*models.MediaDownloadJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+mediaJobColumns+` FROM media_download_jobs
		 WHERE user_id = ? AND source_url = ?
		 ORDER BY created_at DESC LIMIT 1`, userID, sourceURL)
	return scanMediaJob(row)
}

// UpdateMediaJobProgress writes status and progress. Idempotent; a
// duplicate worker writing the same transition is a no-op.
func (db *DB) UpdateMediaJobProgress(ctx context.Context, id string, status models.MediaJobStatus, progress int) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE media_download_jobs SET status = ?, progress = ? WHERE id = ?`,
		string(status), progress, id)
	if err != nil {
		return fmt.Errorf("failed to update media job progress: %w", err)
	}
	return nil
}

// IncrementMediaJobAttempts bumps the attempt counter and returns the new value.
func (db *DB) IncrementMediaJobAttempts(ctx context.Context, id string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE media_download_jobs SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment media job attempts: %w", err)
	}
	var attempts int
	err = db.conn.QueryRowContext(ctx,
		`SELECT attempts FROM media_download_jobs WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("failed to read media job attempts: %w", err)
	}
	return attempts, nil
}

// CompleteMediaJob marks a job completed with its asset and upload links.
func (db *DB) CompleteMediaJob(ctx context.Context, id, mediaAssetID, uploadID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE media_download_jobs SET status = ?, progress = 100, media_asset_id = ?, upload_id = ?, completed_at = ?
		 WHERE id = ?`,
		string(models.MediaJobCompleted), mediaAssetID, uploadID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete media job: %w", err)
	}
	return nil
}

// FailMediaJob marks a job failed with an error code and message.
func (db *DB) FailMediaJob(ctx context.Context, id, errorCode, errorMessage string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE media_download_jobs SET status = ?, progress = 100, error_code = ?, error_message = ?, completed_at = ?
		 WHERE id = ?`,
		string(models.MediaJobFailed), errorCode, errorMessage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to fail media job: %w", err)
	}
	return nil
}

// SetMediaJobQueueID records the durable queue's job id after handoff.
func (db *DB) SetMediaJobQueueID(ctx context.Context, id, queueJobID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE media_download_jobs SET queue_job_id = ? WHERE id = ?`, queueJobID, id)
	if err != nil {
		return fmt.Errorf("failed to set media job queue id: %w", err)
	}
	return nil
}

func scanMediaJob(row rowScanner) (*models.MediaDownloadJob, error) {
	var (
		job       models.MediaDownloadJob
		platform  string
		status    string
		queueID   sql.NullString
		errCode   sql.NullString
		errMsg    sql.NullString
		assetID   sql.NullString
		uploadID  sql.NullString
		completed sql.NullTime
	)
	err := row.Scan(&job.ID, &job.UserID, &platform, &job.SourceURL, &status,
		&job.Progress, &queueID, &job.Attempts, &job.MaxAttempts, &errCode,
		&errMsg, &assetID, &uploadID, &job.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan media job: %w", err)
	}
	job.Platform = models.Platform(platform)
	job.Status = models.MediaJobStatus(status)
	job.QueueJobID = stringVal(queueID)
	job.ErrorCode = stringVal(errCode)
	job.ErrorMessage = stringVal(errMsg)
	job.MediaAssetID = stringVal(assetID)
	job.UploadID = stringVal(uploadID)
	job.CompletedAt = timePtr(completed)
	return &job, nil
}

// ============================================================================
// Media Assets & Uploads
// ============================================================================

// CreateAssetAndUpload atomically materializes an Upload and a MediaAsset
// referencing the same final file path.
func (db *DB) CreateAssetAndUpload(ctx context.Context, asset *models.MediaAsset, upload *models.Upload) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin asset transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if upload.ID == "" {
		upload.ID = uuid.New().String()
	}
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = now
	}
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UploadID = upload.ID

	_, err = tx.ExecContext(ctx,
		`INSERT INTO uploads (id, user_id, file_url, file_type, size, mime, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		upload.ID, upload.UserID, upload.FileURL, nullString(upload.FileType),
		upload.Size, nullString(upload.Mime), upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO media_assets (id, user_id, platform, source_url, file_path, file_name, size, mime, duration_s, transcript_status, upload_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID, asset.UserID, string(asset.Platform), nullString(asset.SourceURL),
		asset.FilePath, asset.FileName, asset.Size, nullString(asset.Mime),
		asset.DurationS, nullString(asset.TranscriptStatus), asset.UploadID,
		asset.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert media asset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit asset transaction: %w", err)
	}
	return nil
}

// GetMediaAsset retrieves an asset scoped to its owner.
func (db *DB) GetMediaAsset(ctx context.Context, userID, id string) (*models.MediaAsset, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, platform, source_url, file_path, file_name, size, mime, duration_s, transcript_status, upload_id, created_at
		 FROM media_assets WHERE id = ? AND user_id = ?`, id, userID)
	return scanMediaAsset(row)
}

// LatestAssetForURL finds the newest asset materialized from a source URL.
func (db *DB) LatestAssetForURL(ctx context.Context, userID, sourceURL string) (*models.MediaAsset, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, platform, source_url, file_path, file_name, size, mime, duration_s, transcript_status, upload_id, created_at
		 FROM media_assets WHERE user_id = ? AND source_url = ?
		 ORDER BY created_at DESC LIMIT 1`, userID, sourceURL)
	return scanMediaAsset(row)
}

func scanMediaAsset(row rowScanner) (*models.MediaAsset, error) {
	var (
		asset      models.MediaAsset
		platform   string
		sourceURL  sql.NullString
		mime       sql.NullString
		transcript sql.NullString
		uploadID   sql.NullString
	)
	err := row.Scan(&asset.ID, &asset.UserID, &platform, &sourceURL, &asset.FilePath,
		&asset.FileName, &asset.Size, &mime, &asset.DurationS, &transcript,
		&uploadID, &asset.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan media asset: %w", err)
	}
	asset.Platform = models.Platform(platform)
	asset.SourceURL = stringVal(sourceURL)
	asset.Mime = stringVal(mime)
	asset.TranscriptStatus = stringVal(transcript)
	asset.UploadID = stringVal(uploadID)
	return &asset, nil
}

// CreateUpload inserts a standalone upload row (direct audit uploads).
func (db *DB) CreateUpload(ctx context.Context, upload *models.Upload) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if upload.ID == "" {
		upload.ID = uuid.New().String()
	}
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO uploads (id, user_id, file_url, file_type, size, mime, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		upload.ID, upload.UserID, upload.FileURL, nullString(upload.FileType),
		upload.Size, nullString(upload.Mime), upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}
	return nil
}

// GetUpload retrieves an upload scoped to its owner.
func (db *DB) GetUpload(ctx context.Context, userID, id string) (*models.Upload, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		upload   models.Upload
		fileType sql.NullString
		mime     sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, file_url, file_type, size, mime, created_at
		 FROM uploads WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&upload.ID, &upload.UserID, &upload.FileURL, &fileType, &upload.Size,
			&mime, &upload.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload: %w", err)
	}
	upload.FileType = stringVal(fileType)
	upload.Mime = stringVal(mime)
	return &upload, nil
}

// ============================================================================
// Transcript Jobs
// ============================================================================

const transcriptJobColumns = `id, user_id, research_item_id, status, progress, queue_job_id,
	attempts, transcript_source, transcript_text, error_code, error_message,
	created_at, completed_at`

// CreateTranscriptJob inserts a new transcript job in queued state.
func (db *DB) CreateTranscriptJob(ctx context.Context, job *models.FeedTranscriptJob) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.MediaJobQueued
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO feed_transcript_jobs (
			id, user_id, research_item_id, status, progress, queue_job_id,
			attempts, transcript_source, transcript_text, error_code,
			error_message, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.ResearchItemID, string(job.Status), job.Progress,
		nullString(job.QueueJobID), job.Attempts,
		nullString(string(job.TranscriptSource)), nullString(job.TranscriptText),
		nullString(job.ErrorCode), nullString(job.ErrorMessage),
		job.CreatedAt, nullTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert transcript job: %w", err)
	}
	return nil
}

// GetTranscriptJob retrieves a transcript job scoped to its owner.
func (db *DB) GetTranscriptJob(ctx context.Context, userID, id string) (*models.FeedTranscriptJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+transcriptJobColumns+` FROM feed_transcript_jobs WHERE id = ? AND user_id = ?`,
		id, userID)
	return scanTranscriptJob(row)
}

// GetTranscriptJobAny retrieves a transcript job without owner scoping.
func (db *DB) GetTranscriptJobAny(ctx context.Context, id string) (*models.FeedTranscriptJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+transcriptJobColumns+` FROM feed_transcript_jobs WHERE id = ?`, id)
	return scanTranscriptJob(row)
}

// UpdateTranscriptJobProgress writes status and progress.
func (db *DB) UpdateTranscriptJobProgress(ctx context.Context, id string, status models.MediaJobStatus, progress int) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE feed_transcript_jobs SET status = ?, progress = ? WHERE id = ?`,
		string(status), progress, id)
	if err != nil {
		return fmt.Errorf("failed to update transcript job progress: %w", err)
	}
	return nil
}

// CompleteTranscriptJob records the transcript result and marks completion.
func (db *DB) CompleteTranscriptJob(ctx context.Context, id string, source models.TranscriptSource, text string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE feed_transcript_jobs SET status = ?, progress = 100, transcript_source = ?, transcript_text = ?, completed_at = ?
		 WHERE id = ?`,
		string(models.MediaJobCompleted), string(source), text, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete transcript job: %w", err)
	}
	return nil
}

// FailTranscriptJob marks a transcript job failed.
func (db *DB) FailTranscriptJob(ctx context.Context, id, errorCode, errorMessage string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE feed_transcript_jobs SET status = ?, progress = 100, error_code = ?, error_message = ?, completed_at = ?
		 WHERE id = ?`,
		string(models.MediaJobFailed), errorCode, errorMessage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to fail transcript job: %w", err)
	}
	return nil
}

func scanTranscriptJob(row rowScanner) (*models.FeedTranscriptJob, error) {
	var (
		job       models.FeedTranscriptJob
		status    string
		queueID   sql.NullString
		source    sql.NullString
		text      sql.NullString
		errCode   sql.NullString
		errMsg    sql.NullString
		completed sql.NullTime
	)
	err := row.Scan(&job.ID, &job.UserID, &job.ResearchItemID, &status, &job.Progress,
		&queueID, &job.Attempts, &source, &text, &errCode, &errMsg,
		&job.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transcript job: %w", err)
	}
	job.Status = models.MediaJobStatus(status)
	job.QueueJobID = stringVal(queueID)
	job.TranscriptSource = models.TranscriptSource(stringVal(source))
	job.TranscriptText = stringVal(text)
	job.ErrorCode = stringVal(errCode)
	job.ErrorMessage = stringVal(errMsg)
	job.CompletedAt = timePtr(completed)
	return &job, nil
}
