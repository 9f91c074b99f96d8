// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package media

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/metrics"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/queue"
)

// Transcript length bounds: the job row keeps up to 20k chars, the
// research item's media_meta mirror keeps 12k.
const (
	transcriptMaxChars = 20000
	metaMirrorMaxChars = 12000
)

// AudioTranscriber turns an audio file into text.
type AudioTranscriber interface {
	Configured() bool
	TranscribeAudio(ctx context.Context, audioPath string) (string, error)
}

// TranscriptWorker resolves transcripts with the whisper -> caption ->
// title preference order.
type TranscriptWorker struct {
	store       Store
	ffmpeg      *clients.FFmpeg
	transcriber AudioTranscriber
	whisperOn   bool
}

// NewTranscriptWorker builds the worker. transcriber may be nil when no
// provider is configured.
func NewTranscriptWorker(store Store, ffmpeg *clients.FFmpeg, transcriber AudioTranscriber, features *config.FeatureFlags) *TranscriptWorker {
	return &TranscriptWorker{
		store:       store,
		ffmpeg:      ffmpeg,
		transcriber: transcriber,
		whisperOn:   features.WhisperTranscription,
	}
}

// Handle processes one transcript job message.
func (w *TranscriptWorker) Handle(ctx context.Context, msg *message.Message) error {
	qj, err := queue.DecodeMediaJob(msg)
	if err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable transcript job")
		return nil
	}

	job, err := w.store.GetTranscriptJobAny(ctx, qj.JobID)
	if err != nil {
		logging.Warn().Err(err).Str("job_id", qj.JobID).Msg("Transcript job row missing, dropping")
		return nil
	}
	if job.Status.Terminal() {
		return nil
	}

	source, text, err := w.resolve(ctx, job)
	if err != nil {
		metrics.TranscriptJobs.WithLabelValues("failed", "none").Inc()
		if failErr := w.store.FailTranscriptJob(ctx, job.ID, "no_transcript_source", err.Error()); failErr != nil {
			logging.Error().Err(failErr).Str("job_id", job.ID).Msg("Failed to persist transcript failure")
		}
		return nil
	}

	if len(text) > transcriptMaxChars {
		text = text[:transcriptMaxChars]
	}
	if err := w.store.CompleteTranscriptJob(ctx, job.ID, source, text); err != nil {
		return err
	}

	mirror := text
	if len(mirror) > metaMirrorMaxChars {
		mirror = mirror[:metaMirrorMaxChars]
	}
	if _, err := w.store.MergeResearchItemMeta(ctx, job.UserID, job.ResearchItemID, models.JSONMap{
		models.MetaTranscriptSource:    string(source),
		models.MetaTranscriptText:      mirror,
		models.MetaTranscriptUpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		logging.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mirror transcript into item meta")
	}

	metrics.TranscriptJobs.WithLabelValues("completed", transcriptSourceLabel(source)).Inc()
	logging.Info().
		Str("job_id", job.ID).
		Str("source", string(source)).
		Int("chars", len(text)).
		Msg("Transcript job completed")
	return nil
}

// resolve walks the preference order for one job's research item.
func (w *TranscriptWorker) resolve(ctx context.Context, job *models.FeedTranscriptJob) (models.TranscriptSource, string, error) {
	item, err := w.store.GetResearchItem(ctx, job.UserID, job.ResearchItemID)
	if err != nil {
		return "", "", fmt.Errorf("research item unavailable: %w", err)
	}

	if w.whisperOn && w.transcriber != nil && w.transcriber.Configured() && item.URL != "" {
		if asset, assetErr := w.store.LatestAssetForURL(ctx, job.UserID, item.URL); assetErr == nil {
			if text, whisperErr := w.transcribeAsset(ctx, job, asset); whisperErr == nil {
				return models.TranscriptWhisper, text, nil
			} else {
				logging.Warn().Err(whisperErr).Str("job_id", job.ID).Msg("Whisper transcription failed, falling back")
			}
		}
	}

	if caption := strings.TrimSpace(item.Caption); caption != "" {
		return models.TranscriptCaption, caption, nil
	}
	if title := strings.TrimSpace(item.Title); title != "" {
		return models.TranscriptTitle, title, nil
	}
	return "", "", fmt.Errorf("item has no media asset, caption, or title")
}

func (w *TranscriptWorker) transcribeAsset(ctx context.Context, job *models.FeedTranscriptJob, asset *models.MediaAsset) (string, error) {
	if err := w.store.UpdateTranscriptJobProgress(ctx, job.ID, models.MediaJobProcessing, 40); err != nil {
		return "", err
	}

	tempDir, err := os.MkdirTemp("", "clipsight-audio-*")
	if err != nil {
		return "", fmt.Errorf("failed to create audio temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	audioPath, err := w.ffmpeg.ExtractAudio(ctx, asset.FilePath, tempDir)
	if err != nil {
		return "", err
	}
	return w.transcriber.TranscribeAudio(ctx, audioPath)
}

func transcriptSourceLabel(s models.TranscriptSource) string {
	switch s {
	case models.TranscriptWhisper:
		return "whisper"
	case models.TranscriptCaption:
		return "caption"
	case models.TranscriptTitle:
		return "title"
	default:
		return "none"
	}
}

// Dispatcher routes media-pool messages to the download or transcript
// worker by job kind.
type Dispatcher struct {
	downloads   *DownloadWorker
	transcripts *TranscriptWorker
}

// NewDispatcher builds the media-pool dispatcher.
func NewDispatcher(downloads *DownloadWorker, transcripts *TranscriptWorker) *Dispatcher {
	return &Dispatcher{downloads: downloads, transcripts: transcripts}
}

// Handle implements the queue handler for the media topic.
func (d *Dispatcher) Handle(ctx context.Context, msg *message.Message) error {
	qj, err := queue.DecodeMediaJob(msg)
	if err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable media-pool job")
		return nil
	}
	if qj.Kind == queue.MediaKindTranscript {
		return d.transcripts.Handle(ctx, msg)
	}
	return d.downloads.Handle(ctx, msg)
}
