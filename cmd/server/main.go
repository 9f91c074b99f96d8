// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package main is the entry point for the Clipsight server.
//
// Clipsight is a creator-analytics backend: it ingests social-video data
// from platform APIs, manual captures, and CSV uploads, runs multi-stage
// analyses, and produces channel diagnoses, multimodal video audits, and
// competitor blueprints feeding a script-optimizer loop.
//
// # Startup order
//
//  1. Configuration (Koanf v2, env over yaml over defaults)
//  2. Logging (zerolog)
//  3. DuckDB database, schema, and stale-job recovery
//  4. Badger cache for blueprints and transcripts
//  5. Job broker: embedded NATS JetStream or an external broker URL
//  6. Domain services and queue workers
//  7. Supervisor tree: data, worker, and api layers
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the root context; the supervisor drains the
// HTTP server and queue consumers before the process exits.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipsight/clipsight/internal/api"
	"github.com/clipsight/clipsight/internal/audit"
	"github.com/clipsight/clipsight/internal/auth"
	"github.com/clipsight/clipsight/internal/blueprint"
	"github.com/clipsight/clipsight/internal/cache"
	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/credits"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/feedloop"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/media"
	"github.com/clipsight/clipsight/internal/optimizer"
	"github.com/clipsight/clipsight/internal/outcome"
	"github.com/clipsight/clipsight/internal/queue"
	"github.com/clipsight/clipsight/internal/report"
	"github.com/clipsight/clipsight/internal/research"
	"github.com/clipsight/clipsight/internal/supervisor"
	"github.com/clipsight/clipsight/internal/supervisor/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("Starting Clipsight")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Data stores.
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.RecoverStaleJobs(ctx); err != nil {
		logging.Warn().Err(err).Msg("Stale job recovery failed")
	}

	kv, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer kv.Close()

	// Job broker. Single-instance deployments run NATS in process.
	brokerURL := cfg.Queue.URL
	if cfg.Queue.Embedded {
		embedded, err := queue.NewEmbeddedServer(&cfg.Queue)
		if err != nil {
			return fmt.Errorf("failed to start embedded broker: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("Embedded broker shutdown failed")
			}
		}()
		brokerURL = embedded.ClientURL()
	}
	if err := queue.EnsureStream(ctx, brokerURL); err != nil {
		return fmt.Errorf("failed to provision job stream: %w", err)
	}
	publisher, err := queue.NewPublisher(brokerURL)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	defer publisher.Close()

	// External providers. Unconfigured providers degrade to deterministic
	// fallbacks inside their consumers.
	youtube := clients.NewYouTubeBreakerClient(clients.NewYouTubeClient(&cfg.YouTube))
	openai := clients.NewOpenAIClient(&cfg.OpenAI)
	downloader := clients.NewDownloader()
	ffmpeg := clients.NewFFmpeg()

	// Domain services.
	creditsSvc := credits.NewService(db, &cfg.Credits)
	researchSvc := research.NewService(db, youtube, creditsSvc, &cfg.Security, &cfg.Uploads)
	optimizerSvc := optimizer.NewService(db, openai)
	mediaSvc := media.NewService(db, publisher)
	auditSvc := audit.NewService(db, publisher, creditsSvc, &cfg.Uploads)
	blueprintSvc := blueprint.NewService(db, kv, youtube, openai, &cfg.Blueprint)
	outcomeSvc := outcome.NewService(db)
	reportSvc := report.NewService(db, blueprintSvc, outcomeSvc)
	feedSvc := feedloop.NewService(db, optimizerSvc, auditSvc, creditsSvc, &cfg.Feed)

	// Queue workers.
	auditRunner := audit.NewRunner(db, downloader, ffmpeg, openai, openai, optimizerSvc, &cfg.Uploads)
	downloadWorker := media.NewDownloadWorker(db, downloader, ffmpeg, &cfg.Uploads)
	transcriptWorker := media.NewTranscriptWorker(db, ffmpeg, openai, &cfg.Features)
	mediaDispatcher := media.NewDispatcher(downloadWorker, transcriptWorker)

	auditSub, err := queue.NewSubscriber(&cfg.Queue, brokerURL, queue.TopicAuditJobs, "audit-runner")
	if err != nil {
		return fmt.Errorf("failed to create audit subscriber: %w", err)
	}
	defer auditSub.Close()
	mediaSub, err := queue.NewSubscriber(&cfg.Queue, brokerURL, queue.TopicMediaJobs, "media-worker")
	if err != nil {
		return fmt.Errorf("failed to create media subscriber: %w", err)
	}
	defer mediaSub.Close()

	// HTTP surface.
	sessions, err := auth.NewSessionManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("failed to initialize sessions: %w", err)
	}
	router := api.NewRouter(cfg, sessions, api.Deps{
		Users:     db,
		Credits:   creditsSvc,
		Research:  researchSvc,
		Optimizer: optimizerSvc,
		Outcomes:  outcomeSvc,
		Audits:    auditSvc,
		Media:     mediaSvc,
		Feed:      feedSvc,
		Reports:   reportSvc,
		DBPing:    db.Ping,
		QueuePing: func(ctx context.Context) error { return queue.Ping(ctx, brokerURL) },
	})
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Supervisor tree.
	tree := supervisor.NewTree(shutdownTimeout)
	tree.AddAPIService(services.NewHTTPService(server, shutdownTimeout))
	tree.AddWorkerService(services.NewConsumerService("audit-consumer", auditSub, cfg.Queue.WorkerCount, auditRunner.Handle))
	tree.AddWorkerService(services.NewConsumerService("media-consumer", mediaSub, cfg.Queue.WorkerCount, mediaDispatcher.Handle))

	if cfg.Features.OutcomeLearning {
		interval := time.Duration(cfg.Outcome.RecalibrateIntervalMinutes) * time.Minute
		tree.AddWorkerService(services.NewTickerService("outcome-recalibrate", interval, func(ctx context.Context) error {
			_, err := outcomeSvc.RecalibrateAll(ctx)
			return err
		}))
	}
	if cfg.Features.FeedAutoIngest {
		interval := time.Duration(cfg.Feed.AutoIngestIntervalMinutes) * time.Minute
		tree.AddWorkerService(services.NewTickerService("feed-auto-ingest", interval, func(ctx context.Context) error {
			return feedSvc.RunDueFollows(ctx, time.Now().UTC())
		}))
	}
	tree.AddDataService(services.NewTickerService("upload-retention", time.Hour, func(context.Context) error {
		media.SweepUploads(&cfg.Uploads)
		return nil
	}))

	logging.Info().Str("addr", server.Addr).Msg("Clipsight ready")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}
