package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/api/handlers"
	"github.com/aws-agent/console/internal/archive"
	"github.com/aws-agent/console/internal/cache/redis"
	"github.com/aws-agent/console/internal/dashboard"
	"github.com/aws-agent/console/internal/filters"
	"github.com/aws-agent/console/internal/gateway"
	"github.com/aws-agent/console/internal/listing"
	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/internal/middleware/ratelimit"
	"github.com/aws-agent/console/internal/middleware/security"
	"github.com/aws-agent/console/internal/middleware/validation"
	"github.com/aws-agent/console/internal/notify"
	"github.com/aws-agent/console/internal/query"
	"github.com/aws-agent/console/internal/storage/sqlite"
	"github.com/aws-agent/console/pkg/circuitbreaker"
	"github.com/aws-agent/console/pkg/config"
	appLogger "github.com/aws-agent/console/pkg/logger"
	"github.com/aws-agent/console/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting recommendations console")

	metrics.Init()

	if err := os.MkdirAll(filepath.Dir(cfg.Session.Path), 0o755); err != nil {
		appLogger.Fatal("Failed to create session directory", zap.Error(err))
	}

	sqliteClient, err := sqlite.NewClient(cfg.Session.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	readiness := map[string]handlers.Pinger{"sqlite": sqliteClient}

	var shared filters.SharedCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.TTL(),
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, vocabulary is cached in memory only", zap.Error(err))
		} else {
			defer redisClient.Close()
			shared = redisClient
			readiness["redis"] = redisClient
		}
	}

	client := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Backend.Timeout(),
		CountingLimit: cfg.Backend.CountingLimit,
		Retry: retry.Config{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialDelay:   time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
			MaxDelay:       time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
		Breaker: circuitbreaker.Config{
			FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
			Timeout:          time.Duration(cfg.Breaker.TimeoutSec) * time.Second,
			OnStateChange: func(name string, _, to circuitbreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			},
		},
	}, sqliteClient)

	cache := query.NewCache()
	hub := notify.NewHub()
	defer hub.Close()
	stopWatch := hub.Watch(cache)
	defer stopWatch()

	filterStore := filters.NewStore(filters.Config{
		StaleTime:   cfg.Cache.VocabularyStaleTime(),
		Debounce:    cfg.Filters.Debounce(),
		LoadTimeout: cfg.Backend.Timeout() * time.Duration(max(cfg.Retry.MaxAttempts, 1)),
	}, cache, client, shared)
	defer filterStore.Close()

	listCfg := listing.Config{PageSize: cfg.Backend.PageSize, StaleTime: cfg.Cache.ListStaleTime()}
	active := listing.NewController(listing.ViewActive, listCfg, cache, client, filterStore)
	archived := listing.NewController(listing.ViewArchived, listCfg, cache, client, filterStore)

	panel := dashboard.NewPanel()
	coordinator := archive.NewCoordinator(cache, client, hub, panel, active, archived)

	session := dashboard.New(dashboard.Deps{
		Cache:       cache,
		Filters:     filterStore,
		Active:      active,
		Archived:    archived,
		Coordinator: coordinator,
		Panel:       panel,
		Auth:        client,
		Sessions:    sqliteClient,
		History:     sqliteClient,
	})
	if err := session.Restore(context.Background()); err != nil {
		appLogger.Warn("Failed to restore session", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Skip: func(c *fiber.Ctx) bool {
			switch c.Path() {
			case "/api/v1/health", "/api/v1/ready", "/api/v1/ws", "/metrics":
				return true
			}
			return false
		},
		Logger: appLogger.Named("ratelimit"),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.Named("validation"),
	}))

	handlers.Register(app, handlers.Deps{
		Session: session,
		Hub:     hub,
		Health:  handlers.NewHealthHandler(readiness, client.Breaker()),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting",
		zap.String("address", addr),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Bool("redis", shared != nil),
	)

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	hub.Close()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Server shutdown incomplete", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
