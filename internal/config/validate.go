// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package config

import (
	"fmt"
	"strings"
)

const (
	minJWTSecretLength     = 24
	minEncryptionKeyLength = 32
)

// insecureSecretDefaults are values that must never reach production.
// Startup fails before binding the port when any secret matches.
var insecureSecretDefaults = []string{
	"change_me_in_production",
	"change-me",
	"changeme",
	"secret",
	"dev-secret",
	"default",
	"insecure",
	"your-secret-key",
	"your_jwt_secret",
	"your_encryption_key",
}

// Validate checks all required fields and secret strength. It returns the
// first error found; callers must treat any error as fatal.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required (DATABASE_URL)")
	}

	if err := validateSecret("JWT_SECRET", c.Security.JWTSecret, minJWTSecretLength); err != nil {
		return err
	}
	if err := validateSecret("ENCRYPTION_KEY", c.Security.EncryptionKey, minEncryptionKeyLength); err != nil {
		return err
	}
	if c.Security.JWTAlgorithm != "HS256" && c.Security.JWTAlgorithm != "HS384" && c.Security.JWTAlgorithm != "HS512" {
		return fmt.Errorf("JWT_ALGORITHM must be one of HS256, HS384, HS512, got %q", c.Security.JWTAlgorithm)
	}
	if c.Security.JWTExpirationHours <= 0 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be positive, got %d", c.Security.JWTExpirationHours)
	}

	if c.Credits.FreeMonthly < 0 {
		return fmt.Errorf("FREE_MONTHLY_CREDITS must not be negative, got %d", c.Credits.FreeMonthly)
	}
	for name, cost := range map[string]int{
		"CREDIT_COST_RESEARCH_SEARCH":    c.Credits.CostResearchSearch,
		"CREDIT_COST_OPTIMIZER_VARIANTS": c.Credits.CostOptimizerVariants,
		"CREDIT_COST_AUDIT_RUN":          c.Credits.CostAuditRun,
	} {
		if cost < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, cost)
		}
	}

	if c.Uploads.Dir == "" {
		return fmt.Errorf("AUDIT_UPLOAD_DIR is required")
	}
	if c.Blueprint.CacheTTLMinutes <= 0 {
		return fmt.Errorf("BLUEPRINT_CACHE_TTL_MINUTES must be positive, got %d", c.Blueprint.CacheTTLMinutes)
	}
	if c.Outcome.RecalibrateIntervalMinutes <= 0 {
		return fmt.Errorf("OUTCOME_RECALIBRATE_INTERVAL_MINUTES must be positive, got %d", c.Outcome.RecalibrateIntervalMinutes)
	}
	if c.Feed.AutoIngestIntervalMinutes <= 0 {
		return fmt.Errorf("FEED_AUTO_INGEST_INTERVAL_MINUTES must be positive, got %d", c.Feed.AutoIngestIntervalMinutes)
	}

	if c.Billing.Enabled {
		if c.Billing.StripeSecretKey == "" || c.Billing.StripePriceID == "" {
			return fmt.Errorf("BILLING_ENABLED requires STRIPE_SECRET_KEY and STRIPE_PRICE_ID")
		}
	}

	return nil
}

// validateSecret enforces minimum length and rejects known insecure defaults.
func validateSecret(name, value string, minLength int) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	if len(value) < minLength {
		return fmt.Errorf("%s must be at least %d characters, got %d", name, minLength, len(value))
	}
	lowered := strings.ToLower(value)
	for _, insecure := range insecureSecretDefaults {
		if lowered == insecure {
			return fmt.Errorf("%s is set to a known insecure default value %q; generate a unique secret", name, value)
		}
	}
	return nil
}

// IsOpenAIConfigured reports whether a usable LLM key is present. Placeholder
// values keep the deterministic fallbacks active.
func (c *Config) IsOpenAIConfigured() bool {
	key := strings.TrimSpace(c.OpenAI.APIKey)
	if key == "" {
		return false
	}
	lowered := strings.ToLower(key)
	return lowered != "sk-placeholder" && lowered != "placeholder" && lowered != "your-api-key" && lowered != "none"
}

// IsYouTubeConfigured reports whether the platform-data client can enrich items.
func (c *Config) IsYouTubeConfigured() bool {
	return strings.TrimSpace(c.YouTube.APIKey) != ""
}
