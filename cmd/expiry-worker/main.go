package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/booking/internal/app"
	"github.com/clinicore/booking/internal/booking"
	"github.com/clinicore/booking/internal/config"
	"github.com/clinicore/booking/internal/db"
	"github.com/clinicore/booking/internal/directory"
	"github.com/clinicore/booking/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := app.NewLogger(cfg.Env)
	defer logger.Sync()

	logger.Info("expiry-worker starting",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("pending_ttl", cfg.PendingTTL))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	store := booking.NewPgStore(pgPool)
	dir := directory.NewPgDirectory(pgPool)
	dispatcher := notify.NewAsyncDispatcher(
		notify.NewLogSender(logger),
		notify.NewEventRecorder(pgPool),
		logger,
	)
	engine := booking.NewTransitionEngine(store, dir, dispatcher, logger)
	sweeper := booking.NewExpirySweeper(store, engine, cfg.PendingTTL, logger)

	// Run once at startup
	runOnce(rootCtx, sweeper, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, sweeper, logger)
		}
	}
}

func runOnce(ctx context.Context, sweeper *booking.ExpirySweeper, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := sweeper.Sweep(runCtx); err != nil {
		logger.Error("expiry run error", zap.Error(err))
		return
	}
	logger.Debug("expiry run complete", zap.Duration("took", time.Since(start)))
}
