// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"MERIDIAN_DB_PATH" envDefault:"./data/meridian.db"`
	SessionSecret string `env:"MERIDIAN_SESSION_SECRET,required"`
	ServerHost    string `env:"MERIDIAN_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"MERIDIAN_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"MERIDIAN_ENV" envDefault:"development"`
	LogLevel      string `env:"MERIDIAN_LOG_LEVEL" envDefault:"info"`

	// Content backend configuration
	BackendURL       string `env:"MERIDIAN_BACKEND_URL,required"`               // Base URL of the content API
	BackendTimeoutMS int    `env:"MERIDIAN_BACKEND_TIMEOUT" envDefault:"10000"` // Request timeout in milliseconds

	// Cache configuration
	RedisURL     string `env:"MERIDIAN_REDIS_URL"`                           // Optional Redis URL for distributed caching
	CachePrefix  string `env:"MERIDIAN_CACHE_PREFIX" envDefault:"meridian:"` // Redis key prefix
	CacheTTL     int    `env:"MERIDIAN_CACHE_TTL" envDefault:"300"`          // Section cache TTL in seconds
	CacheMaxSize int    `env:"MERIDIAN_CACHE_MAX_SIZE" envDefault:"10000"`   // Max memory cache entries

	// Identity resolution configuration
	IdentityTTL int `env:"MERIDIAN_IDENTITY_TTL" envDefault:"60"` // Resolved identity cache TTL in seconds

	// Editing configuration
	DraftTTL int `env:"MERIDIAN_DRAFT_TTL" envDefault:"3600"` // Abandoned draft lifetime in seconds
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// BackendTimeout returns the content backend request timeout.
func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutMS) * time.Millisecond
}

// SectionCacheTTL returns the section cache TTL.
func (c Config) SectionCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// IdentityCacheTTL returns the resolved identity cache TTL.
func (c Config) IdentityCacheTTL() time.Duration {
	return time.Duration(c.IdentityTTL) * time.Second
}

// DraftLifetime returns how long an abandoned draft is kept before pruning.
func (c Config) DraftLifetime() time.Duration {
	return time.Duration(c.DraftTTL) * time.Second
}

// MinSessionSecretLength is the minimum required length for the session secret.
// AES-256 requires 32 bytes minimum for secure encryption.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate session secret length
	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("MERIDIAN_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	// Reject known weak/default secrets
	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("MERIDIAN_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("MERIDIAN_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if !strings.HasPrefix(cfg.BackendURL, "http://") && !strings.HasPrefix(cfg.BackendURL, "https://") {
		return nil, fmt.Errorf("MERIDIAN_BACKEND_URL must be an absolute http(s) URL, got %q", cfg.BackendURL)
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
