// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token service) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Rate limiter failure directions when the shared counter store is unreachable.
const (
	// FailOpen lets requests through on store failure, preserving availability.
	FailOpen = "open"
	// FailClosed rejects requests on store failure, preserving the limit.
	FailClosed = "closed"
)

// minJWTSecretLength guards against trivially brute-forceable HMAC keys.
const minJWTSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the Finsight auth service.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Shared Counter Store (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing and lifetimes
	JWTSecret       string        `env:"JWT_SECRET,required"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// TokenPurgeGrace is how long expired refresh tokens stay in storage
	// before physical deletion. Expired rows are unusable either way; the
	// grace keeps them queryable for incident forensics.
	TokenPurgeGrace time.Duration `env:"TOKEN_PURGE_GRACE" envDefault:"24h"`

	// Password strength policy
	PasswordMinLength      int  `env:"PASSWORD_MIN_LENGTH"       envDefault:"8"`
	PasswordRequireUpper   bool `env:"PASSWORD_REQUIRE_UPPER"    envDefault:"true"`
	PasswordRequireLower   bool `env:"PASSWORD_REQUIRE_LOWER"    envDefault:"true"`
	PasswordRequireDigit   bool `env:"PASSWORD_REQUIRE_DIGIT"    envDefault:"true"`
	PasswordRequireSpecial bool `env:"PASSWORD_REQUIRE_SPECIAL"  envDefault:"true"`

	// Bootstrap administrator, created at startup when absent. Leaving the
	// password empty disables the bootstrap entirely.
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL"    envDefault:"admin@finsight.app"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Rate limiting thresholds per operation class
	RateLimitRequests  int           `env:"RATE_LIMIT_REQUESTS"  envDefault:"100"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW"    envDefault:"1h"`
	LoginRateLimit     int           `env:"LOGIN_RATE_LIMIT"     envDefault:"10"`
	LoginRateWindow    time.Duration `env:"LOGIN_RATE_WINDOW"    envDefault:"15m"`
	RegisterRateLimit  int           `env:"REGISTER_RATE_LIMIT"  envDefault:"5"`
	RegisterRateWindow time.Duration `env:"REGISTER_RATE_WINDOW" envDefault:"1h"`

	// RateLimitFailMode decides limiter behavior when Redis is unreachable:
	// "open" (availability wins) or "closed" (the limit wins). There is no
	// safe universal default, so the deployment must choose explicitly.
	RateLimitFailMode string `env:"RATE_LIMIT_FAIL_MODE,required"`

	// Upload constraints, consumed by the file-handling service. No upload
	// endpoint exists here, so these (the throttle class included) are carried
	// as configuration surface only until that collaborator mounts its routes.
	UploadRateLimit         int           `env:"UPLOAD_RATE_LIMIT"         envDefault:"10"`
	UploadRateWindow        time.Duration `env:"UPLOAD_RATE_WINDOW"        envDefault:"1h"`
	MaxUploadSize           int64         `env:"MAX_UPLOAD_SIZE"           envDefault:"10485760"`
	AllowedUploadExtensions string        `env:"ALLOWED_UPLOAD_EXTENSIONS" envDefault:".pdf,.txt,.doc,.docx"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces constraints the env tags cannot express.
func (c *Config) validate() error {
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters long", minJWTSecretLength)
	}

	if c.RateLimitFailMode != FailOpen && c.RateLimitFailMode != FailClosed {
		return fmt.Errorf("config: RATE_LIMIT_FAIL_MODE must be %q or %q, got %q",
			FailOpen, FailClosed, c.RateLimitFailMode)
	}

	return nil
}

// AllowedUploadExtensionsList returns the allowed upload extensions as a slice.
func (c *Config) AllowedUploadExtensionsList() []string {
	parts := strings.Split(c.AllowedUploadExtensions, ",")
	extensions := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			extensions = append(extensions, trimmed)
		}
	}
	return extensions
}

// AllowedOrigins returns the extra CORS origins as a slice.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.ExtraOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
