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

	"venueboard/internal/api"
	"venueboard/internal/config"
	"venueboard/internal/dispatch"
	"venueboard/internal/events"
	"venueboard/internal/logging"
	"venueboard/internal/metrics"
	"venueboard/internal/secrets"
	"venueboard/internal/sheet"
	"venueboard/internal/snapshot"

	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	if cfg.Board.SnapshotURL == "" {
		return fmt.Errorf("board.snapshot_url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := snapshot.NewStore()
	bus := events.NewEventBus()
	events.SubscribeSnapshotObserver(bus, &logger)

	fetcher := snapshot.NewFetcher(
		cfg.Board.SnapshotURL,
		store,
		bus,
		&logger,
		time.Duration(cfg.Board.FetchTimeoutSeconds)*time.Second,
	)

	intake, cleanup := initIntake(ctx, cfg, &logger)
	if cleanup != nil {
		defer cleanup()
	}

	server := api.NewHTTPServer(cfg.Board, store, cfg.Venues, cfg.Slots, intake, &logger)

	startMetrics(ctx, cfg, &logger)

	go fetcher.Run(ctx, time.Duration(cfg.Board.PollIntervalSeconds)*time.Second)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("board server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info().Msg("board stopped")
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
	logger := baseLogger.With().Str("component", "board").Logger()

	return cfg, logger, closer, nil
}

// initIntake wires /api/book to one of two paths: the same tabular
// source the syncer scans (pass-through bookings enter the normal sync
// path), or a direct new_booking dispatch to the remote store. The
// board still works read-only when neither is available.
func initIntake(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (api.Intake, func()) {
	if cfg.Board.IntakeBackend == "dispatch" {
		store := secrets.NewChain(cfg.Dispatch.SecretsFile)
		client := dispatch.NewClient(
			cfg.Dispatch.URL,
			cfg.Dispatch.TokenKey,
			store,
			time.Duration(cfg.Dispatch.TimeoutSeconds)*time.Second,
			logger,
		)
		return dispatch.NewIntake(client), nil
	}

	switch cfg.Sheet.Backend {
	case "sqlite":
		src, err := sheet.NewSQLiteSource(cfg.Sheet.SQLitePath)
		if err != nil {
			logger.Warn().Err(err).Msg("sqlite intake unavailable, /api/book disabled")
			return nil, nil
		}
		return src, func() { _ = src.Close() }
	default:
		src, err := sheet.NewSheetsSource(ctx, cfg.Sheet.CredentialsFile, cfg.Sheet.SpreadsheetID, cfg.Sheet.SheetName)
		if err != nil {
			logger.Warn().Err(err).Msg("sheets intake unavailable, /api/book disabled")
			return nil, nil
		}
		return src, nil
	}
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

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
}
