// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package config provides centralized configuration for all Clipsight components.
//
// Configuration loading order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config file: optional YAML file (config.yaml) for persistent settings
//  3. Environment variables: override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Queue       QueueConfig       `koanf:"queue"`
	Security    SecurityConfig    `koanf:"security"`
	YouTube     YouTubeConfig     `koanf:"youtube"`
	OpenAI      OpenAIConfig      `koanf:"openai"`
	Uploads     UploadsConfig     `koanf:"uploads"`
	Blueprint   BlueprintConfig   `koanf:"blueprint"`
	Transcripts TranscriptsConfig `koanf:"transcripts"`
	Features    FeatureFlags      `koanf:"features"`
	Outcome     OutcomeConfig     `koanf:"outcome"`
	Feed        FeedConfig        `koanf:"feed"`
	Credits     CreditsConfig     `koanf:"credits"`
	Billing     BillingConfig     `koanf:"billing"`
	Cache       CacheConfig       `koanf:"cache"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`

	// RateLimitReqs / RateLimitWindow bound the standard per-IP quota;
	// sensitive route groups apply stricter multipliers on top.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. DATABASE_URL maps here; the
	// duckdb:// scheme prefix is stripped when present.
	Path             string `koanf:"path"`
	MaxMemory        string `koanf:"max_memory"`
	Threads          int    `koanf:"threads"`
	AutoCreateSchema bool   `koanf:"auto_create_schema"`
}

// QueueConfig holds the durable job broker settings (NATS JetStream).
type QueueConfig struct {
	// URL is the broker address. REDIS_URL maps here for compatibility with
	// older deployments; the value is treated as an opaque broker URL.
	URL      string `koanf:"url"`
	Embedded bool   `koanf:"embedded"`
	StoreDir string `koanf:"store_dir"`

	MaxDeliver     int           `koanf:"max_deliver"`
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
	WorkerCount    int           `koanf:"worker_count"`
}

// SecurityConfig holds session-token and secret settings.
type SecurityConfig struct {
	JWTSecret          string `koanf:"jwt_secret"`
	JWTAlgorithm       string `koanf:"jwt_algorithm"`
	JWTExpirationHours int    `koanf:"jwt_expiration_hours"`
	EncryptionKey      string `koanf:"encryption_key"`
}

// YouTubeConfig holds the platform-data client settings.
type YouTubeConfig struct {
	APIKey string `koanf:"api_key"`

	// RequestsPerSecond paces outbound Data API calls.
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Timeout           time.Duration `koanf:"timeout"`
}

// OpenAIConfig holds the LLM provider settings. An empty or placeholder
// APIKey switches every call site to deterministic fallbacks.
type OpenAIConfig struct {
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	ChatModel  string        `koanf:"chat_model"`
	AudioModel string        `koanf:"audio_model"`
	Timeout    time.Duration `koanf:"timeout"`
}

// UploadsConfig holds the process-wide upload directory settings.
type UploadsConfig struct {
	Dir              string `koanf:"dir"`
	RetentionHours   int    `koanf:"retention_hours"`
	DeleteAfterAudit bool   `koanf:"delete_after_audit"`
}

// BlueprintConfig holds competitor-blueprint cache settings.
type BlueprintConfig struct {
	CacheTTLMinutes int `koanf:"cache_ttl_minutes"`
}

// TranscriptsConfig holds transcript cache settings.
type TranscriptsConfig struct {
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`
}

// FeatureFlags gate optional subsystems. Disabled features return
// FeatureDisabled from their endpoints rather than being absent.
type FeatureFlags struct {
	WhisperTranscription  bool `koanf:"whisper"`
	TikTokConnectors      bool `koanf:"tiktok"`
	InstagramConnectors   bool `koanf:"instagram"`
	ExternalMediaDownload bool `koanf:"external_download"`
	Research              bool `koanf:"research"`
	OptimizerV2           bool `koanf:"optimizer_v2"`
	OutcomeLearning       bool `koanf:"outcome_learning"`
	FeedAutoIngest        bool `koanf:"feed_auto_ingest"`
}

// OutcomeConfig holds the recalibration scheduler settings.
type OutcomeConfig struct {
	RecalibrateIntervalMinutes int `koanf:"recalibrate_interval_minutes"`
}

// FeedConfig holds the auto-ingest scheduler settings.
type FeedConfig struct {
	AutoIngestIntervalMinutes int `koanf:"auto_ingest_interval_minutes"`
}

// CreditsConfig enumerates the monthly grant and per-operation costs.
type CreditsConfig struct {
	FreeMonthly           int `koanf:"free_monthly"`
	CostResearchSearch    int `koanf:"cost_research_search"`
	CostOptimizerVariants int `koanf:"cost_optimizer_variants"`
	CostAuditRun          int `koanf:"cost_audit_run"`
}

// BillingConfig holds the checkout stub settings.
type BillingConfig struct {
	Enabled          bool   `koanf:"enabled"`
	StripeSecretKey  string `koanf:"stripe_secret_key"`
	StripePriceID    string `koanf:"stripe_price_id"`
	StripeSuccessURL string `koanf:"stripe_success_url"`
}

// CacheConfig holds the Badger KV store settings used for blueprint and
// transcript caching.
type CacheConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
