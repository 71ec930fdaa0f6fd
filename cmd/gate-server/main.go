// Command gate-server starts the search-gate HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/admission"
	"github.com/kmalkov/searchgate/internal/clock"
	"github.com/kmalkov/searchgate/internal/config"
	"github.com/kmalkov/searchgate/internal/contentfilter"
	"github.com/kmalkov/searchgate/internal/dataset"
	"github.com/kmalkov/searchgate/internal/governor"
	"github.com/kmalkov/searchgate/internal/hotsearch"
	"github.com/kmalkov/searchgate/internal/metrics"
	"github.com/kmalkov/searchgate/internal/migrate"
	"github.com/kmalkov/searchgate/internal/quota"
	"github.com/kmalkov/searchgate/internal/registry"
	"github.com/kmalkov/searchgate/internal/repository/postgres"
	httpserver "github.com/kmalkov/searchgate/internal/server/http"
	"github.com/kmalkov/searchgate/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	cfg, err := config.New()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.PostgresDSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	banRepo := postgres.NewBanRepo(db)
	vipRepo := postgres.NewVipRepo(db)
	counterRepo := postgres.NewCounterRepo(db)
	trendRepo := postgres.NewTrendRepo(db)
	usageRepo := postgres.NewUsageRepo(db)

	clk := clock.System{}

	// Dataset
	index, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		logger.Fatal("load dataset", zap.Error(err))
	}
	logger.Info("dataset loaded",
		zap.String("name", index.Name()),
		zap.Int("records", index.Len()),
	)

	// Services
	reg := registry.New(banRepo, vipRepo, cfg.Admins(), clk, logger)
	quotas := quota.New(counterRepo, quota.Limits{
		Search: cfg.MaxSearchPerDay,
		Random: cfg.MaxRandomPerDay,
	}, clk, logger)
	gov := governor.New(governor.Config{
		Window:           cfg.RequestLimitWindow,
		MaxPerWindow:     cfg.MaxRequestsPerWindow,
		SameContentLimit: cfg.SameContentLimit,
		RandomKey:        cfg.RandomContentKey,
		RandomLimit:      cfg.MaxRandomLimit,
		BufferTime:       cfg.BufferTime,
	}, clk)
	sessions := session.New(cfg.SessionTTL, cfg.NonVipMaxPage, reg, clk, logger)
	filter := contentfilter.New(cfg.BlockedPhrases)
	trends := hotsearch.New(trendRepo, filter, clk, logger)
	controller := admission.New(reg, gov, quotas, clk, logger)

	// Background sweeps
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				gov.Sweep()
				sessions.Sweep()
				metrics.ActiveSessions.Set(float64(sessions.Len()))

				sweepCtx, cancel := context.WithTimeout(ctx, cfg.StorageTimeout)
				quotas.PurgeStale(sweepCtx)
				cancel()
			}
		}
	}()

	app := httpserver.New(
		controller, sessions, reg, quotas, index, trends,
		usageRepo, gov, filter, cfg.RandomContentKey, clk, logger,
	)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: app.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
