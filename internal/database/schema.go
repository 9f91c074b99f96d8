// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package database

import (
	"context"
	"fmt"
	"time"
)

// createTables creates all tables if they do not exist. DDL is idempotent;
// JSON-shaped columns are stored as TEXT and handled by the store methods.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR PRIMARY KEY,
			email VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credit_ledger (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			entry_type VARCHAR NOT NULL,
			delta_credits INTEGER NOT NULL,
			balance_after INTEGER NOT NULL,
			reason VARCHAR NOT NULL,
			reference_type VARCHAR,
			reference_id VARCHAR,
			billing_provider VARCHAR,
			billing_reference VARCHAR,
			period_key VARCHAR,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS research_collections (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			is_system BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS research_items (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			collection_id VARCHAR,
			platform VARCHAR NOT NULL,
			source_type VARCHAR NOT NULL,
			url VARCHAR,
			external_id VARCHAR,
			creator_handle VARCHAR,
			creator_display_name VARCHAR,
			title VARCHAR,
			caption VARCHAR,
			views BIGINT NOT NULL DEFAULT 0,
			likes BIGINT NOT NULL DEFAULT 0,
			comments BIGINT NOT NULL DEFAULT 0,
			shares BIGINT NOT NULL DEFAULT 0,
			saves BIGINT NOT NULL DEFAULT 0,
			media_meta TEXT NOT NULL DEFAULT '{}',
			published_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS research_exports (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			collection_id VARCHAR,
			format VARCHAR NOT NULL,
			file_path VARCHAR NOT NULL,
			file_name VARCHAR NOT NULL,
			item_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feed_source_follows (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			mode VARCHAR NOT NULL,
			query VARCHAR NOT NULL,
			timeframe VARCHAR NOT NULL,
			sort_by VARCHAR,
			sort_direction VARCHAR,
			item_limit INTEGER NOT NULL,
			cadence_minutes INTEGER NOT NULL,
			is_active BOOLEAN NOT NULL,
			last_run_at TIMESTAMP,
			next_run_at TIMESTAMP,
			last_error VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feed_auto_ingest_runs (
			id VARCHAR PRIMARY KEY,
			follow_id VARCHAR NOT NULL,
			user_id VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			item_count INTEGER NOT NULL DEFAULT 0,
			item_ids TEXT NOT NULL DEFAULT '[]',
			error_message VARCHAR,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS feed_repost_packages (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			source_item_id VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			target_platforms TEXT NOT NULL DEFAULT '[]',
			package TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feed_telemetry_events (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			event_name VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			platform VARCHAR,
			source_item_id VARCHAR,
			details TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS media_download_jobs (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			source_url VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			queue_job_id VARCHAR,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			error_code VARCHAR,
			error_message VARCHAR,
			media_asset_id VARCHAR,
			upload_id VARCHAR,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS media_assets (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			source_url VARCHAR,
			file_path VARCHAR NOT NULL,
			file_name VARCHAR NOT NULL,
			size BIGINT NOT NULL DEFAULT 0,
			mime VARCHAR,
			duration_s INTEGER NOT NULL DEFAULT 0,
			transcript_status VARCHAR,
			upload_id VARCHAR,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS uploads (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			file_url VARCHAR NOT NULL,
			file_type VARCHAR,
			size BIGINT NOT NULL DEFAULT 0,
			mime VARCHAR,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feed_transcript_jobs (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			research_item_id VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			queue_job_id VARCHAR,
			attempts INTEGER NOT NULL DEFAULT 0,
			transcript_source VARCHAR,
			transcript_text TEXT,
			error_code VARCHAR,
			error_message VARCHAR,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audits (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			progress VARCHAR NOT NULL DEFAULT '0',
			input_json TEXT,
			output_json TEXT,
			error_message VARCHAR,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS report_share_links (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			audit_id VARCHAR NOT NULL,
			share_token VARCHAR NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			last_accessed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS variant_batches (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			source_item_id VARCHAR,
			platform VARCHAR NOT NULL,
			topic VARCHAR NOT NULL,
			request TEXT NOT NULL DEFAULT '{}',
			variants TEXT NOT NULL DEFAULT '[]',
			selected_variant_id VARCHAR,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS draft_snapshots (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			source_item_id VARCHAR,
			variant_id VARCHAR,
			script_text TEXT NOT NULL,
			baseline_score DOUBLE,
			rescored_score DOUBLE NOT NULL,
			delta_score DOUBLE,
			detector_rankings TEXT NOT NULL DEFAULT '[]',
			next_actions TEXT NOT NULL DEFAULT '[]',
			line_level_edits TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outcome_metrics (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			content_item_id VARCHAR,
			draft_snapshot_id VARCHAR,
			report_id VARCHAR,
			video_external_id VARCHAR,
			posted_at TIMESTAMP NOT NULL,
			actual_metrics TEXT NOT NULL DEFAULT '{}',
			retention_points TEXT,
			predicted_score DOUBLE,
			actual_score DOUBLE NOT NULL,
			calibration_delta DOUBLE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS calibration_snapshots (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			sample_size INTEGER NOT NULL DEFAULT 0,
			mean_abs_error DOUBLE NOT NULL DEFAULT 0,
			hit_rate DOUBLE NOT NULL DEFAULT 0,
			trend VARCHAR NOT NULL,
			confidence VARCHAR NOT NULL,
			recommendations TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, platform)
		)`,
		`CREATE TABLE IF NOT EXISTS blueprint_snapshots (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL UNIQUE,
			payload TEXT,
			competitor_signature VARCHAR NOT NULL,
			generated_at TIMESTAMP NOT NULL,
			last_error VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS competitors (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			external_id VARCHAR NOT NULL,
			handle VARCHAR,
			display_name VARCHAR,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS competitor_videos (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			competitor_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			external_id VARCHAR NOT NULL,
			title VARCHAR,
			duration_s DOUBLE NOT NULL DEFAULT 0,
			views BIGINT NOT NULL DEFAULT 0,
			likes BIGINT NOT NULL DEFAULT 0,
			comments BIGINT NOT NULL DEFAULT 0,
			shares BIGINT NOT NULL DEFAULT 0,
			saves BIGINT NOT NULL DEFAULT 0,
			published_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, ddl := range tables {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// createIndexes creates secondary indexes for the hot query paths.
func (db *DB) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_credit_ledger_user ON credit_ledger (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_ledger_period ON credit_ledger (user_id, entry_type, period_key)`,
		`CREATE INDEX IF NOT EXISTS idx_research_items_user ON research_items (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_research_items_platform ON research_items (user_id, platform)`,
		`CREATE INDEX IF NOT EXISTS idx_follows_user ON feed_source_follows (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_follows_due ON feed_source_follows (is_active, next_run_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_runs_follow ON feed_auto_ingest_runs (follow_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_repost_user_item ON feed_repost_packages (user_id, source_item_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_user ON feed_telemetry_events (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_media_jobs_user ON media_download_jobs (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_media_jobs_url ON media_download_jobs (user_id, source_url)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_jobs_item ON feed_transcript_jobs (research_item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audits_user ON audits (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_variant_batches_user ON variant_batches (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_user ON draft_snapshots (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_user ON outcome_metrics (user_id, platform, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_competitor_videos_user ON competitor_videos (user_id, platform)`,
	}

	for _, ddl := range indexes {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
