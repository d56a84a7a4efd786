// Package main is the entrypoint for the waitlist counter API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/modelforge/waitlist/internal/broadcast"
	"github.com/modelforge/waitlist/internal/cache"
	"github.com/modelforge/waitlist/internal/config"
	"github.com/modelforge/waitlist/internal/handler"
	"github.com/modelforge/waitlist/internal/metrics"
	"github.com/modelforge/waitlist/internal/middleware"
	"github.com/modelforge/waitlist/internal/repository"
	"github.com/modelforge/waitlist/internal/server"
	"github.com/modelforge/waitlist/internal/service"
	"github.com/modelforge/waitlist/internal/store"
	"github.com/modelforge/waitlist/internal/store/filestore"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Redis is shared by the redis backend, the relay and the rate limiter.
	var redisCache *cache.Cache
	if cfg.UsesRedis() && cfg.RedisURL != "" {
		redisCache, err = cache.New(ctx, cfg.RedisURL, cfg.SeedCount)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		logger.Info("connected to Redis")
	}

	st, err := openStore(ctx, cfg, logger, redisCache)
	if err != nil {
		logger.Error("failed to open signup store",
			slog.String("backend", cfg.StoreBackend),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL)),
		)
		os.Exit(1)
	}

	metricsRecorder := metrics.NewInMemory()

	hub := broadcast.NewHub(logger, metricsRecorder, broadcast.WithQueueSize(cfg.WSQueueSize))
	var notifier service.Notifier = hub

	var relay *broadcast.RedisRelay
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if cfg.BroadcastRelay == config.RelayRedis {
		relay = broadcast.NewRedisRelay(redisCache.Client(), hub, logger, metricsRecorder)
		notifier = relay
		go func() {
			if err := relay.Run(relayCtx); err != nil {
				logger.Error("broadcast relay stopped", "error", err)
			}
		}()
	}

	counterService := service.NewCounterService(st, notifier, logger, metricsRecorder)

	rateLimit := middleware.RateLimitConfig{
		Logger:  logger,
		Metrics: metricsRecorder,
		Enabled: cfg.RateLimitSignupEnabled,
		RPM:     cfg.RateLimitSignupRPM,
		Burst:   cfg.RateLimitSignupBurst,
	}
	if redisCache != nil {
		rateLimit.Limiter = redisCache
	} else if cfg.RateLimitSignupEnabled {
		logger.Warn("signup rate limiting disabled: REDIS_URL not set")
		rateLimit.Enabled = false
	}

	var redisHealth handler.HealthChecker
	if redisCache != nil {
		redisHealth = redisCache
	}

	if cfg.AdminTokenHash == "" {
		logger.Info("admin listing disabled: ADMIN_TOKEN_HASH not set")
	}

	r := handler.NewRouter(handler.RouterConfig{
		Logger:  logger,
		Handler: handler.New(version, cfg.StoreBackend),
		Health:  handler.NewHealthHandler(st, cfg.StoreBackend, redisHealth),
		Metrics: handler.NewMetricsHandler(metricsRecorder),
		Signups: handler.NewSignupHandler(counterService, logger),
		Broadcast: broadcast.NewHandler(broadcast.HandlerConfig{
			Hub:            hub,
			Source:         counterService,
			Logger:         logger,
			AllowedOrigins: cfg.GetWSAllowedOrigins(),
			WriteTimeout:   cfg.WSWriteTimeout,
		}),
		Security:     middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:         middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins()),
		MaxBodyBytes: cfg.MaxRequestBodySize,
		RateLimit:    rateLimit,
		AdminAuth: middleware.AdminAuthConfig{
			Logger:    logger,
			TokenHash: cfg.AdminTokenHash,
		},
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Shutdown runs in reverse: relay, hub, redis, store.
	srv.OnShutdown("signup store", func(context.Context) error { return st.Close() })
	if redisCache != nil && cfg.StoreBackend != config.BackendRedis {
		srv.OnShutdown("redis", func(context.Context) error { return redisCache.Close() })
	}
	srv.OnShutdown("broadcast hub", hub.Shutdown)
	if relay != nil {
		srv.OnShutdown("broadcast relay", func(ctx context.Context) error {
			stopRelay()
			return relay.Shutdown(ctx)
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"backend", cfg.StoreBackend,
		"relay", cfg.BroadcastRelay,
		"seed", cfg.SeedCount,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore opens the configured signup store backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, redisCache *cache.Cache) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		st, err := filestore.Open(cfg.DataFile, cfg.SeedCount, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using file store", "path", cfg.DataFile)
		return st, nil

	case config.BackendPostgres:
		applied, err := repository.Migrate(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", "versions", applied)
		}
		repo, err := repository.New(ctx, cfg.DatabaseURL, cfg.SeedCount)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database", "database_url", redactURL(cfg.DatabaseURL))
		return repo, nil

	case config.BackendRedis:
		if redisCache == nil {
			return nil, errors.New("redis backend requires REDIS_URL")
		}
		logger.Info("using redis store")
		return redisCache, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
