package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/booking/internal/api"
	"github.com/clinicore/booking/internal/app"
	"github.com/clinicore/booking/internal/booking"
	"github.com/clinicore/booking/internal/config"
	"github.com/clinicore/booking/internal/db"
	"github.com/clinicore/booking/internal/directory"
	"github.com/clinicore/booking/internal/notify"
	redisclient "github.com/clinicore/booking/internal/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := app.NewLogger(cfg.Env)
	defer logger.Sync()

	logger.Info("api-server starting", zap.String("env", cfg.Env), zap.String("http_port", cfg.HTTPPort))

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

	migrator, err := db.NewMigrator(pgPool, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal("migrator init error", zap.Error(err))
	}
	if err := migrator.Run(rootCtx); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	_ = migrator.Close()
	logger.Info("migrations applied")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	store := booking.NewPgStore(pgPool)
	dir := directory.NewPgDirectory(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	dispatcher := notify.NewAsyncDispatcher(
		notify.NewLogSender(logger),
		notify.NewEventRecorder(pgPool),
		logger,
	)

	coordinator := booking.NewCoordinator(store, dir, locker, dispatcher, logger)
	engine := booking.NewTransitionEngine(store, dir, dispatcher, logger)

	router := api.NewRouter(api.RouterConfig{
		Coordinator: coordinator,
		Engine:      engine,
		Store:       store,
		PgPool:      pgPool,
		Redis:       rdb,
		Logger:      logger,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
