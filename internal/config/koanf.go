// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file search paths in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/clipsight/config.yaml",
	"/etc/clipsight/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envKeyMap maps recognized environment variables to koanf paths. The
// public env surface predates the nested config layout, so the names are
// irregular and mapped explicitly rather than derived.
var envKeyMap = map[string]string{
	"API_HOST":     "server.host",
	"API_PORT":     "server.port",
	"CORS_ORIGINS": "server.cors_origins",

	"DATABASE_URL":          "database.path",
	"AUTO_CREATE_DB_SCHEMA": "database.auto_create_schema",

	"REDIS_URL":     "queue.url",
	"NATS_EMBEDDED": "queue.embedded",
	"NATS_STORE_DIR": "queue.store_dir",

	"JWT_SECRET":           "security.jwt_secret",
	"JWT_ALGORITHM":        "security.jwt_algorithm",
	"JWT_EXPIRATION_HOURS": "security.jwt_expiration_hours",
	"ENCRYPTION_KEY":       "security.encryption_key",

	"YOUTUBE_API_KEY": "youtube.api_key",
	"OPENAI_API_KEY":  "openai.api_key",

	"AUDIT_UPLOAD_DIR":             "uploads.dir",
	"AUDIT_UPLOAD_RETENTION_HOURS": "uploads.retention_hours",
	"DELETE_UPLOAD_AFTER_AUDIT":    "uploads.delete_after_audit",

	"BLUEPRINT_CACHE_TTL_MINUTES":  "blueprint.cache_ttl_minutes",
	"TRANSCRIPT_CACHE_TTL_SECONDS": "transcripts.cache_ttl_seconds",

	"ENABLE_WHISPER_TRANSCRIPTION":  "features.whisper",
	"ENABLE_TIKTOK_CONNECTORS":      "features.tiktok",
	"ENABLE_INSTAGRAM_CONNECTORS":   "features.instagram",
	"ALLOW_EXTERNAL_MEDIA_DOWNLOAD": "features.external_download",
	"RESEARCH_ENABLED":              "features.research",
	"OPTIMIZER_V2_ENABLED":          "features.optimizer_v2",
	"OUTCOME_LEARNING_ENABLED":      "features.outcome_learning",
	"FEED_AUTO_INGEST_ENABLED":      "features.feed_auto_ingest",

	"OUTCOME_RECALIBRATE_INTERVAL_MINUTES": "outcome.recalibrate_interval_minutes",
	"FEED_AUTO_INGEST_INTERVAL_MINUTES":    "feed.auto_ingest_interval_minutes",

	"FREE_MONTHLY_CREDITS":            "credits.free_monthly",
	"CREDIT_COST_RESEARCH_SEARCH":     "credits.cost_research_search",
	"CREDIT_COST_OPTIMIZER_VARIANTS":  "credits.cost_optimizer_variants",
	"CREDIT_COST_AUDIT_RUN":           "credits.cost_audit_run",

	"BILLING_ENABLED":    "billing.enabled",
	"STRIPE_SECRET_KEY":  "billing.stripe_secret_key",
	"STRIPE_PRICE_ID":    "billing.stripe_price_id",
	"STRIPE_SUCCESS_URL": "billing.stripe_success_url",

	"CACHE_PATH": "cache.path",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",
}

// defaultConfig returns a Config with all default values applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:             "/data/clipsight.duckdb",
			MaxMemory:        "2GB",
			Threads:          0, // 0 = runtime.NumCPU()
			AutoCreateSchema: true,
		},
		Queue: QueueConfig{
			URL:            "nats://127.0.0.1:4222",
			Embedded:       true,
			StoreDir:       "/data/nats/jetstream",
			MaxDeliver:     3,
			AckWaitTimeout: 30 * time.Minute,
			WorkerCount:    2,
		},
		Security: SecurityConfig{
			JWTSecret:          "",
			JWTAlgorithm:       "HS256",
			JWTExpirationHours: 24 * 7,
			EncryptionKey:      "",
		},
		YouTube: YouTubeConfig{
			APIKey:            "",
			RequestsPerSecond: 5,
			Timeout:           15 * time.Second,
		},
		OpenAI: OpenAIConfig{
			APIKey:     "",
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o",
			AudioModel: "whisper-1",
			Timeout:    120 * time.Second,
		},
		Uploads: UploadsConfig{
			Dir:              "/data/uploads",
			RetentionHours:   72,
			DeleteAfterAudit: false,
		},
		Blueprint:   BlueprintConfig{CacheTTLMinutes: 360},
		Transcripts: TranscriptsConfig{CacheTTLSeconds: 3600},
		Features: FeatureFlags{
			WhisperTranscription:  false,
			TikTokConnectors:      false,
			InstagramConnectors:   false,
			ExternalMediaDownload: true,
			Research:              true,
			OptimizerV2:           true,
			OutcomeLearning:       true,
			FeedAutoIngest:        true,
		},
		Outcome: OutcomeConfig{RecalibrateIntervalMinutes: 60},
		Feed:    FeedConfig{AutoIngestIntervalMinutes: 5},
		Credits: CreditsConfig{
			FreeMonthly:           50,
			CostResearchSearch:    1,
			CostOptimizerVariants: 2,
			CostAuditRun:          5,
		},
		Billing: BillingConfig{Enabled: false},
		Cache:   CacheConfig{Path: "/data/cache"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration with layered sources (defaults, optional YAML
// file, environment variables) and validates the result. Startup MUST stop
// on error: insecure secrets are a hard failure, not a warning.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", func(key string) string {
		if path, ok := envKeyMap[key]; ok {
			return path
		}
		return "" // unrecognized env vars are ignored
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// CORS origins arrive as a comma-separated string from env.
	if raw := k.String("server.cors_origins"); raw != "" && strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		if err := k.Set("server.cors_origins", origins); err != nil {
			return nil, fmt.Errorf("failed to normalize cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.Database.Path = normalizeDatabasePath(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// normalizeDatabasePath strips an optional duckdb:// scheme so DATABASE_URL
// can carry either a bare path or a URL.
func normalizeDatabasePath(path string) string {
	return strings.TrimPrefix(path, "duckdb://")
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
