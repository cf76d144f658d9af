package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simcheck/internal/config"
	"github.com/kailas-cloud/simcheck/internal/db"
	dbRedis "github.com/kailas-cloud/simcheck/internal/db/redis"
	logpkg "github.com/kailas-cloud/simcheck/internal/logger"
	"github.com/kailas-cloud/simcheck/internal/metrics"
	chiTransport "github.com/kailas-cloud/simcheck/internal/transport/chi"
	analysisuc "github.com/kailas-cloud/simcheck/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/simcheck/internal/usecase/health"
	usageuc "github.com/kailas-cloud/simcheck/internal/usecase/usage"
	"github.com/kailas-cloud/simcheck/internal/version"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  "Run the HTTP API (POST /analyze, GET /health, GET /usage, GET /metrics) until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	env := config.GetEnv()

	cfg, err := loadConfig(configPath, env)
	if err != nil {
		return err
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting simcheck API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterAnalysisMetrics()

	// The database holds budget counters; without it they stay in memory.
	var (
		kv     db.KVStore
		pinger healthuc.DBPinger
	)
	if cfg.Database.Enabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Database.Addrs,
			Username:  cfg.Database.Username,
			Password:  cfg.Database.Password,
			DB:        cfg.Database.DB,
			IOTimeout: time.Duration(cfg.Database.IOTimeoutSec) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("create database store: %w", err)
		}
		defer store.Close()

		readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database")
		kv, pinger = store, store
	}

	budget := newBudgetTracker(ctx, cfg.Embedding, kv, logger)

	embedder, err := buildEmbedder(cfg.Embedding, budget, logger)
	if err != nil {
		return err
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("budget", budget != nil),
	)

	analysisSvc := analysisuc.New(embedder).
		WithThreshold(cfg.Analysis.Threshold()).
		WithMaxBatchSize(cfg.Analysis.MaxBatchSize).
		WithMaxTextBytes(cfg.Analysis.MaxTextBytes).
		WithDimensions(cfg.Embedding.Dimensions)

	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader, cfg.Embedding.Provider)
	healthSvc := healthuc.New(pinger, embedder).WithLogger(logger)

	server := chiTransport.NewServer(analysisSvc, usageSvc, healthSvc, logger).
		WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:            cfg.Auth.APIKeys,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		RequestTimeout:     time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
