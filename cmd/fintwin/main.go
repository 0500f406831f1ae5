package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fintwin/internal/advisor"
	"fintwin/internal/amqp"
	"fintwin/internal/archive"
	"fintwin/internal/config"
	apphttp "fintwin/internal/http"
	applog "fintwin/internal/log"
	"fintwin/internal/oracle"
	"fintwin/internal/session"
	"fintwin/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level: slog.LevelInfo,
		JSON:  cfg.LogFormat == "json",
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(cfg.SessionTTL)
	defer sessions.Close()

	// Oracle client is optional; without it every recommendation uses
	// the rule-based fallback.
	var gen *advisor.Generator
	opts := []oracle.Option{oracle.WithTimeout(cfg.OracleTimeout)}
	if cfg.OracleBaseURL != "" {
		opts = append(opts, oracle.WithBaseURL(cfg.OracleBaseURL))
	}
	if client := oracle.NewClient(cfg.OracleAPIKey, cfg.OracleModel, opts...); client != nil {
		gen = advisor.NewGenerator(client, logger)
		logger.Info("Oracle advisor enabled", "model", cfg.OracleModel)
	} else {
		logger.Info("Oracle advisor disabled - recommendations use built-in rules")
	}

	// Snapshot archive is optional. When enabled, exports land in SQLite
	// and are queued for the sheet sync worker over AMQP.
	var archiver apphttp.SnapshotArchiver
	if cfg.ArchiveBackend == "sqlite" {
		repo, err := storage.NewSQLiteRepository(cfg.SnapshotDBPath)
		if err != nil {
			logger.Error("Failed to initialize snapshot archive", "error", err, "path", cfg.SnapshotDBPath)
			os.Exit(1)
		}
		defer repo.Close()

		var publisher archive.Publisher
		if amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue); err != nil {
			// Archiving still works; the worker's periodic pass drains
			// rows the queue never saw.
			logger.Warn("AMQP unavailable, snapshot sync deferred to worker catch-up", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}

		archiver = archive.NewPipeline(repo, publisher)
		logger.Info("Snapshot archive enabled", "path", cfg.SnapshotDBPath)
	}

	srv := apphttp.NewServer(":"+cfg.Port, sessions, gen, archiver, cfg.ForecastHorizon)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintwin server", "port", cfg.Port, "archive", cfg.ArchiveBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
