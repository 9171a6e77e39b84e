package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venueboard/internal/config"
	"venueboard/internal/dispatch"
	"venueboard/internal/events"
	"venueboard/internal/lock"
	"venueboard/internal/logging"
	"venueboard/internal/metrics"
	"venueboard/internal/secrets"
	"venueboard/internal/sheet"
	"venueboard/internal/syncjob"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, cleanup, err := initSource(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := source.EnsureHeaders(ctx); err != nil {
		return fmt.Errorf("ensure helper headers: %w", err)
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var locker lock.Locker
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, cfg.Sync.LockKey, 2*time.Minute)
	} else {
		logger.Warn().Msg("redis not configured, using in-process lock")
		locker = lock.NewMemoryLocker()
	}

	store := secrets.NewChain(cfg.Dispatch.SecretsFile)
	client := dispatch.NewClient(
		cfg.Dispatch.URL,
		cfg.Dispatch.TokenKey,
		store,
		time.Duration(cfg.Dispatch.TimeoutSeconds)*time.Second,
		&logger,
	)

	loc := time.UTC
	if cfg.Sync.Timezone != "" {
		parsed, err := time.LoadLocation(cfg.Sync.Timezone)
		if err != nil {
			logger.Warn().Err(err).Str("tz", cfg.Sync.Timezone).Msg("bad timezone, using UTC")
		} else {
			loc = parsed
		}
	}

	bus := events.NewEventBus()
	events.SubscribeSyncObserver(bus, &logger)

	job := syncjob.New(
		source,
		client,
		locker,
		bus,
		&logger,
		time.Duration(cfg.Sync.LockWaitSeconds)*time.Second,
		cfg.Sync.MaxRetries,
		loc,
	)

	startMetrics(ctx, cfg, &logger)

	job.Start(ctx, time.Duration(cfg.Sync.IntervalSeconds)*time.Second)
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "syncer").Logger()

	return cfg, logger, closer, nil
}

func initSource(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (sheet.RowSource, func(), error) {
	switch cfg.Sheet.Backend {
	case "sqlite":
		src, err := sheet.NewSQLiteSource(cfg.Sheet.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite source: %w", err)
		}
		logger.Info().Str("path", cfg.Sheet.SQLitePath).Msg("sqlite sheet source ready")
		return src, func() { _ = src.Close() }, nil
	default:
		src, err := sheet.NewSheetsSource(ctx, cfg.Sheet.CredentialsFile, cfg.Sheet.SpreadsheetID, cfg.Sheet.SheetName)
		if err != nil {
			return nil, nil, fmt.Errorf("init sheets source: %w", err)
		}
		if err := src.TestConnection(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info().Str("spreadsheet", cfg.Sheet.SpreadsheetID).Msg("google sheets source ready")
		return src, nil, nil
	}
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
