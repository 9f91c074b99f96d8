// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/metrics"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/queue"
)

// attemptTimeout bounds one download attempt.
const attemptTimeout = 30 * time.Minute

// retryBackoffs are the waits before attempts 2 and 3.
var retryBackoffs = []time.Duration{10 * time.Second, 30 * time.Second, 120 * time.Second}

// DownloadWorker consumes media jobs and drives the download state
// machine: queued -> downloading(20) -> processing(65) -> completed(100).
type DownloadWorker struct {
	store      Store
	downloader *clients.Downloader
	ffmpeg     *clients.FFmpeg
	uploadsDir string

	// sleep is swapped in tests to skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDownloadWorker builds the worker.
func NewDownloadWorker(store Store, downloader *clients.Downloader, ffmpeg *clients.FFmpeg, cfg *config.UploadsConfig) *DownloadWorker {
	return &DownloadWorker{
		store:      store,
		downloader: downloader,
		ffmpeg:     ffmpeg,
		uploadsDir: cfg.Dir,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle processes one queued media job message. Terminal jobs ack
// without work so JetStream redeliveries stay idempotent.
func (w *DownloadWorker) Handle(ctx context.Context, msg *message.Message) error {
	qj, err := queue.DecodeMediaJob(msg)
	if err != nil {
		// Malformed payloads can never succeed; drop them.
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable media job")
		return nil
	}

	job, err := w.store.GetMediaJobAny(ctx, qj.JobID)
	if err != nil {
		logging.Warn().Err(err).Str("job_id", qj.JobID).Msg("Media job row missing, dropping")
		return nil
	}
	if job.Status.Terminal() {
		return nil
	}

	start := time.Now()
	if err := w.run(ctx, job); err != nil {
		metrics.MediaDownloads.WithLabelValues("failed").Inc()
		if failErr := w.store.FailMediaJob(ctx, job.ID, models.ErrCodeDownloadFailed, err.Error()); failErr != nil {
			logging.Error().Err(failErr).Str("job_id", job.ID).Msg("Failed to persist media job failure")
		}
		logging.Warn().Err(err).Str("job_id", job.ID).Msg("Media download failed")
		return nil // terminal failure recorded; do not redeliver
	}

	metrics.MediaDownloads.WithLabelValues("completed").Inc()
	metrics.MediaDownloadDuration.Observe(time.Since(start).Seconds())
	return nil
}

// run retries the download up to MaxAttempts with fixed backoffs.
func (w *DownloadWorker) run(ctx context.Context, job *models.MediaDownloadJob) error {
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for job.Attempts < maxAttempts {
		attempt, err := w.store.IncrementMediaJobAttempts(ctx, job.ID)
		if err != nil {
			return err
		}
		job.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		lastErr = w.attempt(attemptCtx, job)
		cancel()
		if lastErr == nil {
			return nil
		}

		logging.Warn().
			Err(lastErr).
			Str("job_id", job.ID).
			Int("attempt", attempt).
			Msg("Download attempt failed")

		if job.Attempts >= maxAttempts {
			break
		}
		backoff := retryBackoffs[len(retryBackoffs)-1]
		if job.Attempts-1 < len(retryBackoffs) {
			backoff = retryBackoffs[job.Attempts-1]
		}
		if err := w.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("retry wait interrupted: %w", err)
		}
	}
	return lastErr
}

// attempt runs one full download pass.
func (w *DownloadWorker) attempt(ctx context.Context, job *models.MediaDownloadJob) (err error) {
	if err := w.store.UpdateMediaJobProgress(ctx, job.ID, models.MediaJobDownloading, 20); err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "clipsight-dl-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	downloadedPath, err := w.downloader.Download(ctx, job.SourceURL, tempDir, job.ID)
	if err != nil {
		return err
	}

	if err := w.store.UpdateMediaJobProgress(ctx, job.ID, models.MediaJobProcessing, 65); err != nil {
		return err
	}

	// Probe failures degrade to duration 0, they do not fail the job.
	durationS := 0
	if dur, probeErr := w.ffmpeg.ProbeDuration(ctx, downloadedPath); probeErr == nil {
		durationS = int(dur)
	} else {
		logging.Debug().Err(probeErr).Str("job_id", job.ID).Msg("Duration probe failed")
	}

	userDir := filepath.Join(w.uploadsDir, clients.SafeFilename(job.UserID))
	if err := os.MkdirAll(userDir, 0o750); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	fileName := clients.SafeFilename(job.ID + "_" + filepath.Base(downloadedPath))
	finalPath := filepath.Join(userDir, fileName)
	if err := moveFile(downloadedPath, finalPath); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(finalPath)
		}
	}()

	info, err := os.Stat(finalPath)
	if err != nil {
		return fmt.Errorf("final file missing after move: %w", err)
	}

	upload := &models.Upload{
		UserID:   job.UserID,
		FileURL:  finalPath,
		FileType: "video",
		Size:     info.Size(),
		Mime:     "video/mp4",
	}
	asset := &models.MediaAsset{
		UserID:    job.UserID,
		Platform:  job.Platform,
		SourceURL: job.SourceURL,
		FilePath:  finalPath,
		FileName:  fileName,
		Size:      info.Size(),
		Mime:      "video/mp4",
		DurationS: durationS,
	}
	if err := w.store.CreateAssetAndUpload(ctx, asset, upload); err != nil {
		return err
	}
	if err := w.store.CompleteMediaJob(ctx, job.ID, asset.ID, upload.ID); err != nil {
		return err
	}

	logging.Info().
		Str("job_id", job.ID).
		Str("asset_id", asset.ID).
		Int("duration_s", durationS).
		Msg("Media download completed")
	return nil
}

// moveFile renames when possible and falls back to copy+remove across
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open downloaded file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create final file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy into uploads dir: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to flush final file: %w", err)
	}
	return os.Remove(src)
}
