package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/motorsuscripcion/risk-info-service/internal/common"
	"github.com/motorsuscripcion/risk-info-service/internal/docparse"
	"github.com/motorsuscripcion/risk-info-service/internal/llm/gemini"
	"github.com/motorsuscripcion/risk-info-service/internal/orchestrator"
	"github.com/motorsuscripcion/risk-info-service/internal/repository"
	"github.com/motorsuscripcion/risk-info-service/internal/server"
	"github.com/motorsuscripcion/risk-info-service/internal/source"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("creating DB pool", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("DB health failed", "error", err)
		os.Exit(1)
	}
	logger.Info("DB health OK")

	sourcesRepo := repository.NewSourceRepository(pool, logger)
	casesRepo := repository.NewCaseRepository(pool, logger)
	resultsRepo := repository.NewResultRepository(pool, logger)

	invoker := source.NewInvoker(cfg.Sources.Timeout, logger)
	analyzer := gemini.NewClient(gemini.Config{
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Model,
		APIKey:  cfg.Model.APIKey,
		Timeout: cfg.Model.Timeout,
	}, logger)
	docs := docparse.NewAdapter(analyzer, logger)

	orch := orchestrator.New(invoker, docs, casesRepo, resultsRepo, logger)

	svc := server.NewService(sourcesRepo, orch, func(ctx context.Context) error {
		return repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger)
	}, logger)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: svc.Router(),
	}

	go func() {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("stopped")
}
