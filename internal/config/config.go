// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/modelforge/waitlist/internal/auth"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Broadcast relay modes.
const (
	RelayNone  = "none"
	RelayRedis = "redis"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Signup store. Exactly one backend serves a deployment.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"file"`
	DataFile     string `env:"DATA_FILE" envDefault:"data/emails.json"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RedisURL     string `env:"REDIS_URL"`
	SeedCount    int64  `env:"SEED_COUNT" envDefault:"1247"`

	// Broadcast
	BroadcastRelay   string        `env:"BROADCAST_RELAY" envDefault:"none"`
	WSQueueSize      int           `env:"WS_QUEUE_SIZE" envDefault:"16"`
	WSWriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"5s"`
	WSAllowedOrigins string        `env:"WS_ALLOWED_ORIGINS" envDefault:""`

	// Argon2id PHC hash of the admin token; empty disables GET /signups.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Signup rate limiting (per client IP, needs REDIS_URL)
	RateLimitSignupEnabled bool `env:"RATE_LIMIT_SIGNUP_ENABLED" envDefault:"true"`
	RateLimitSignupRPM     int  `env:"RATE_LIMIT_SIGNUP_RPM" envDefault:"10"`
	RateLimitSignupBurst   int  `env:"RATE_LIMIT_SIGNUP_BURST" envDefault:"5"`

	// Comma-separated list of allowed origins (e.g. "https://example.com,https://www.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes for POST /signups
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"4096"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// GetWSAllowedOrigins returns the websocket origin allow-list. Empty falls
// back to the CORS list; both empty accepts any origin.
func (c *Config) GetWSAllowedOrigins() []string {
	if origins := splitList(c.WSAllowedOrigins); len(origins) > 0 {
		return origins
	}
	return c.GetCORSAllowedOrigins()
}

// UsesRedis reports whether any component needs REDIS_URL.
func (c *Config) UsesRedis() bool {
	return c.StoreBackend == BackendRedis || c.BroadcastRelay == RelayRedis || c.RedisURL != ""
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendFile:
		if strings.TrimSpace(c.DataFile) == "" {
			errs = append(errs, errors.New("DATA_FILE is required for the file backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of file, postgres, redis", c.StoreBackend))
	}

	switch c.BroadcastRelay {
	case RelayNone:
	case RelayRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for BROADCAST_RELAY=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("BROADCAST_RELAY %q is not one of none, redis", c.BroadcastRelay))
	}

	if c.SeedCount < 0 {
		errs = append(errs, errors.New("SEED_COUNT must not be negative"))
	}
	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT %d out of range", c.AppPort))
	}
	if c.WSQueueSize <= 0 {
		errs = append(errs, errors.New("WS_QUEUE_SIZE must be positive"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if c.RateLimitSignupEnabled && (c.RateLimitSignupRPM <= 0 || c.RateLimitSignupBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_SIGNUP_RPM and RATE_LIMIT_SIGNUP_BURST must be positive when enabled"))
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not one of json, text", c.LogFormat))
	}

	if c.AdminTokenHash != "" {
		if err := auth.CheckHash(c.AdminTokenHash); err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_TOKEN_HASH: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
