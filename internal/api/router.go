package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicore/booking/internal/booking"
)

type RouterConfig struct {
	Coordinator *booking.Coordinator
	Engine      *booking.TransitionEngine
	Store       booking.Store
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Logger      *zap.Logger
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/appointments", bookAppointmentHandler(cfg.Coordinator))
	r.Get("/appointments", listAppointmentsHandler(cfg.Store))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Store))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Coordinator))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Coordinator))
	r.Post("/appointments/{id}/status", updateStatusHandler(cfg.Engine))

	return r
}
