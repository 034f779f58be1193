// Package main provides the entry point for the ChainSignal server.
// ChainSignal ingests entity-behavior signals from onchain intelligence
// feeds, scores and classifies them, and serves the ranked results over
// HTTP for the admin dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nlowell/chainsignal/internal/api"
	"github.com/nlowell/chainsignal/internal/config"
	"github.com/nlowell/chainsignal/internal/feed"
	"github.com/nlowell/chainsignal/internal/notify"
	"github.com/nlowell/chainsignal/internal/observability"
	"github.com/nlowell/chainsignal/internal/snapshot"
	"github.com/nlowell/chainsignal/internal/source"
	"github.com/nlowell/chainsignal/internal/store"
)

// Version information (injected at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ChainSignal %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	tel, err := observability.New(observability.Config{
		ServiceName:    "chainsignal",
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		LogLevel:       cfg.Telemetry.LogLevel,
		LogFormat:      cfg.Telemetry.LogFormat,
		TracingEnabled: cfg.Telemetry.TracingEnabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		MetricsEnabled: cfg.Telemetry.MetricsEnabled,
	})
	if err != nil {
		log.Fatalf("initializing telemetry: %v", err)
	}
	logger := tel.Logger()

	logger.Info("starting chainsignal",
		zap.String("version", Version),
		zap.String("config", *configPath),
		zap.String("store", cfg.Store.Backend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store backend. The Redis client is kept separately because the rate
	// limiter shares it.
	var (
		st          store.Store
		redisClient *redis.Client
	)
	switch cfg.Store.Backend {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: os.Getenv(cfg.Redis.PasswordEnv),
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Fatal("connecting to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		st = store.NewRedis(redisClient, cfg.Store.TTL)
	default:
		st = store.NewMemory()
	}

	fd := feed.New(st, tel, logger)

	// Upstream sources.
	manager := source.NewManager(st, tel, logger, cfg.Sources.PollInterval)
	for _, sc := range cfg.Sources.HTTP {
		src, err := source.NewHTTPSource(source.HTTPConfig{
			Name:     sc.Name,
			URL:      sc.URL,
			TokenEnv: sc.TokenEnv,
			Timeout:  sc.Timeout,
		})
		if err != nil {
			logger.Fatal("configuring source", zap.String("name", sc.Name), zap.Error(err))
		}
		manager.Register(src)
	}
	if cfg.Sources.SeedFile != "" {
		src, err := source.NewFileSource("seed", cfg.Sources.SeedFile)
		if err != nil {
			logger.Fatal("configuring seed source", zap.Error(err))
		}
		manager.Register(src)
	}
	manager.Start(ctx)

	// Periodic stat snapshots.
	var snaps *snapshot.Snapshotter
	if cfg.Snapshots.Enabled {
		snaps = snapshot.New(fd, tel, logger, cfg.Snapshots.Schedule, cfg.Snapshots.MaxHistory)
		if err := snaps.Start(); err != nil {
			logger.Fatal("starting snapshotter", zap.Error(err))
		}
	}

	// Webhook alerting.
	var notifier *notify.Webhook
	if cfg.Notifier.Enabled {
		notifier, err = notify.New(notify.Config{
			URL:        cfg.Notifier.URL,
			TokenEnv:   cfg.Notifier.TokenEnv,
			MinTier:    cfg.Notifier.MinTier,
			Timeout:    cfg.Notifier.Timeout,
			RetryCount: cfg.Notifier.RetryCount,
		}, tel, logger)
		if err != nil {
			logger.Fatal("configuring notifier", zap.Error(err))
		}
	}

	// Rate limiting needs the shared Redis counter; Validate has already
	// rejected configs that enable it on the memory backend.
	var limiter *api.RateLimiter
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter = api.NewRateLimiter(redisClient, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.IncludeHeaders, logger)
	}

	handlers := api.New(st, fd, snaps, notifier, tel, logger, api.Options{
		Version:       Version,
		DefaultLimit:  cfg.Feed.DefaultLimit,
		MaxLimit:      cfg.Feed.MaxLimit,
		NetworkWindow: cfg.Feed.NetworkWindow,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handlers.Router(limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tel.StartSystemMetricsCollector(ctx)

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	manager.Stop()
	if snaps != nil {
		snaps.Stop()
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// loadConfig reads the config file, falling back to defaults when the
// path does not exist so a bare binary still starts.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("config file %s not found, using defaults", path)
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
