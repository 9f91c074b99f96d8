// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/metrics"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/optimizer"
	"github.com/clipsight/clipsight/internal/queue"
)

const (
	// runTimeout bounds one full audit run.
	runTimeout = 30 * time.Minute

	// frameIntervalS is the extraction cadence, one frame per 5 seconds.
	frameIntervalS = 5.0

	// maxPromptFrames caps how many frames reach the multimodal prompt.
	maxPromptFrames = 10
)

// FrameAnalyzer is the multimodal LLM surface the runner needs.
type FrameAnalyzer interface {
	Configured() bool
	AnalyzeFrames(ctx context.Context, system, user string, framePaths []string) (string, error)
}

// AudioTranscriber turns an extracted audio track into text.
type AudioTranscriber interface {
	Configured() bool
	TranscribeAudio(ctx context.Context, audioPath string) (string, error)
}

// Predictor is the scoring-engine surface for performance predictions.
type Predictor interface {
	PredictFromTranscript(ctx context.Context, userID string, platform models.Platform, tr optimizer.Transcript, durationS float64, m *optimizer.TrueMetrics) (*models.ScoreBreakdown, error)
}

// Runner consumes audit jobs and drives the audit state machine:
// pending -> downloading -> processing_video -> processing_audio ->
// analyzing -> completed|failed.
type Runner struct {
	store       Store
	downloader  *clients.Downloader
	ffmpeg      *clients.FFmpeg
	analyzer    FrameAnalyzer
	transcriber AudioTranscriber
	predictor   Predictor
	scratchRoot string
	deleteAfter bool
}

// NewRunner builds the audit runner. analyzer and transcriber may be nil;
// deterministic fallbacks then serve every run.
func NewRunner(store Store, downloader *clients.Downloader, ffmpeg *clients.FFmpeg,
	analyzer FrameAnalyzer, transcriber AudioTranscriber, predictor Predictor,
	cfg *config.UploadsConfig) *Runner {
	return &Runner{
		store:       store,
		downloader:  downloader,
		ffmpeg:      ffmpeg,
		analyzer:    analyzer,
		transcriber: transcriber,
		predictor:   predictor,
		scratchRoot: os.TempDir(),
		deleteAfter: cfg.DeleteAfterAudit,
	}
}

// Handle processes one queued audit job message. Terminal audits ack
// without work so redeliveries stay idempotent.
func (r *Runner) Handle(ctx context.Context, msg *message.Message) error {
	job, err := queue.DecodeAuditJob(msg)
	if err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable audit job")
		return nil
	}

	audit, err := r.store.GetAuditAny(ctx, job.AuditID)
	if err != nil {
		logging.Warn().Err(err).Str("audit_id", job.AuditID).Msg("Audit row missing, dropping")
		return nil
	}
	if audit.Status.Terminal() {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	if err := r.run(runCtx, audit); err != nil {
		metrics.AuditRuns.WithLabelValues("failed").Inc()
		if failErr := r.store.FailAudit(ctx, audit.ID, err.Error()); failErr != nil {
			logging.Error().Err(failErr).Str("audit_id", audit.ID).Msg("Failed to persist audit failure")
		}
		logging.Warn().Err(err).Str("audit_id", audit.ID).Msg("Audit run failed")
		return nil
	}

	metrics.AuditRuns.WithLabelValues("completed").Inc()
	metrics.AuditDuration.Observe(time.Since(start).Seconds())
	return nil
}

// run executes the full audit pipeline. The scratch dir is removed on
// every exit path.
func (r *Runner) run(ctx context.Context, audit *models.Audit) error {
	input := audit.Input
	if input == nil {
		return fmt.Errorf("audit has no input payload")
	}

	scratch := filepath.Join(r.scratchRoot, "clipsight-audit-"+clients.SafeFilename(audit.ID))
	if err := os.MkdirAll(scratch, 0o750); err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if err := r.store.UpdateAuditProgress(ctx, audit.ID, models.AuditDownloading); err != nil {
		return err
	}
	videoPath, err := r.resolveVideo(ctx, input, scratch)
	if err != nil {
		return err
	}

	durationS := 60.0
	if dur, probeErr := r.ffmpeg.ProbeDuration(ctx, videoPath); probeErr == nil && dur > 0 {
		durationS = dur
	} else if probeErr != nil {
		logging.Debug().Err(probeErr).Str("audit_id", audit.ID).Msg("Duration probe failed")
	}

	if err := r.store.UpdateAuditProgress(ctx, audit.ID, models.AuditProcessingVideo); err != nil {
		return err
	}
	framesDir := filepath.Join(scratch, "frames")
	if err := os.MkdirAll(framesDir, 0o750); err != nil {
		return fmt.Errorf("failed to create frames dir: %w", err)
	}
	frames, err := r.ffmpeg.ExtractFrames(ctx, videoPath, framesDir, frameIntervalS)
	if err != nil {
		// Frame loss degrades the analysis, it does not fail the run.
		logging.Warn().Err(err).Str("audit_id", audit.ID).Msg("Frame extraction failed")
		frames = nil
	}

	if err := r.store.UpdateAuditProgress(ctx, audit.ID, models.AuditProcessingAudio); err != nil {
		return err
	}
	tr := r.resolveTranscript(ctx, audit, input, videoPath, scratch, durationS)

	if err := r.store.UpdateAuditProgress(ctx, audit.ID, models.AuditAnalyzing); err != nil {
		return err
	}
	analysis := r.analyze(ctx, audit, input, tr, frames)

	platform := input.Platform
	if platform == "" {
		platform = models.PlatformYouTube
	}
	prediction, err := r.predictor.PredictFromTranscript(ctx, audit.UserID, platform, tr, durationS,
		trueMetricsFromInput(input))
	if err != nil {
		return fmt.Errorf("performance prediction failed: %w", err)
	}

	output := &models.AuditOutput{
		VideoAnalysis:         analysis,
		PerformancePrediction: prediction,
	}
	if err := r.store.CompleteAudit(ctx, audit.ID, output); err != nil {
		return err
	}

	if r.deleteAfter || input.DeleteAfterRun {
		if input.SourceMode == models.AuditSourceUpload && input.UploadPath != "" {
			if rmErr := os.Remove(input.UploadPath); rmErr != nil && !os.IsNotExist(rmErr) {
				logging.Warn().Err(rmErr).Str("audit_id", audit.ID).Msg("Failed to delete upload after audit")
			}
		}
	}

	logging.Info().
		Str("audit_id", audit.ID).
		Float64("overall_score", analysis.OverallScore).
		Float64("combined", prediction.Combined).
		Msg("Audit run completed")
	return nil
}

// resolveVideo downloads URL-mode audits into the scratch dir and stat
// checks upload-mode paths.
func (r *Runner) resolveVideo(ctx context.Context, input *models.AuditInput, scratch string) (string, error) {
	if input.SourceMode == models.AuditSourceURL {
		path, err := r.downloader.Download(ctx, input.VideoURL, scratch, "video")
		if err != nil {
			return "", fmt.Errorf("video download failed: %w", err)
		}
		return path, nil
	}
	if _, err := os.Stat(input.UploadPath); err != nil {
		return "", fmt.Errorf("upload path unavailable: %w", err)
	}
	return input.UploadPath, nil
}

// resolveTranscript prefers provider transcription and falls back to the
// deterministic mock so runs stay testable without a key.
func (r *Runner) resolveTranscript(ctx context.Context, audit *models.Audit, input *models.AuditInput, videoPath, scratch string, durationS float64) optimizer.Transcript {
	if r.transcriber != nil && r.transcriber.Configured() {
		audioPath, err := r.ffmpeg.ExtractAudio(ctx, videoPath, scratch)
		if err == nil {
			if text, trErr := r.transcriber.TranscribeAudio(ctx, audioPath); trErr == nil && text != "" {
				return optimizer.TranscriptFromText(text, durationS)
			} else if trErr != nil {
				logging.Warn().Err(trErr).Str("audit_id", audit.ID).Msg("Transcription failed, using mock")
			}
		} else {
			logging.Warn().Err(err).Str("audit_id", audit.ID).Msg("Audio extraction failed, using mock")
		}
	}
	return mockTranscript(input.Title, durationS)
}

// analyze runs the multimodal prompt when a provider and frames exist,
// otherwise the deterministic fallback.
func (r *Runner) analyze(ctx context.Context, audit *models.Audit, input *models.AuditInput, tr optimizer.Transcript, frames []string) *models.VideoAnalysis {
	sampled := sampleFrames(frames, maxPromptFrames)
	if r.analyzer != nil && r.analyzer.Configured() && len(sampled) > 0 {
		raw, err := r.analyzer.AnalyzeFrames(ctx, analysisSystemPrompt, buildUserPrompt(input.Title, tr), sampled)
		if err == nil {
			if analysis, parseErr := parseAnalysis(raw, audit.ID); parseErr == nil {
				return analysis
			} else {
				logging.Warn().Err(parseErr).Str("audit_id", audit.ID).Msg("Analysis response unparseable, using fallback")
			}
		} else {
			logging.Warn().Err(err).Str("audit_id", audit.ID).Msg("Multimodal analysis failed, using fallback")
		}
	}
	return fallbackAnalysis(audit.ID, tr)
}

// sampleFrames picks at most limit frames, uniformly strided across the
// sequence.
func sampleFrames(frames []string, limit int) []string {
	if len(frames) <= limit {
		return frames
	}
	stride := len(frames) / limit
	sampled := make([]string, 0, limit)
	for i := 0; i < len(frames) && len(sampled) < limit; i += stride {
		sampled = append(sampled, frames[i])
	}
	return sampled
}

// trueMetricsFromInput lifts owner-supplied platform metrics and an
// ingested retention curve into scoring-engine inputs.
func trueMetricsFromInput(input *models.AuditInput) *optimizer.TrueMetrics {
	if len(input.RetentionPoints) == 0 && len(input.PlatformMetrics) == 0 {
		return nil
	}
	m := &optimizer.TrueMetrics{RetentionPoints: input.RetentionPoints}
	if v, ok := metricInt(input.PlatformMetrics, "views"); ok {
		m.Views = &v
	}
	if v, ok := metricInt(input.PlatformMetrics, "shares"); ok {
		m.Shares = &v
	}
	if v, ok := metricInt(input.PlatformMetrics, "saves"); ok {
		m.Saves = &v
	}
	return m
}

// metricInt reads one numeric key from a decoded JSON map.
func metricInt(m models.JSONMap, key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
