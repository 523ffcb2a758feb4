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

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/api"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/app"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/config"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/core"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/observability"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	stats := observability.NewStats()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run history is optional; without a database the service still answers.
	var (
		recorder core.RunRecorder
		history  api.RunHistory
	)
	if cfg.DatabaseURL != "" {
		dbStore, err := store.NewStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to store", "error", err)
			os.Exit(1)
		}
		defer dbStore.Close()

		if err := dbStore.RunMigrations(""); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		recorder, history = dbStore, dbStore
		core.NewRetentionService(dbStore, cfg.RunRetention, logger).Start(ctx)
	} else {
		slog.Info("DATABASE_URL not set, run history disabled")
	}

	workflow := app.NewWorkflow(cfg, recorder, stats, logger)
	srv := api.NewServer(workflow, history, stats, logger)
	httpServer := srv.HTTPServer(":"+cfg.Port, cfg.Limits.RunTimeout)

	go func() {
		slog.Info("starting server", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Limits.RunTimeout+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
