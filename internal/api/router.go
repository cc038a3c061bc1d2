package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/slot-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service        *schedule.Service
	PgPool         *pgxpool.Pool // nil when using the memory store
	Redis          *redis.Client // nil when using local locks
	Logger         zerolog.Logger
	Env            string
	Version        string
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/doctor-schedule", func(r chi.Router) {
		r.Get("/working-hours", listRulesHandler(cfg.Service))
		r.Post("/working-hours", createRuleHandler(cfg.Service))
		r.Put("/working-hours/{id}", updateRuleHandler(cfg.Service))
		r.Delete("/working-hours/{id}", deleteRuleHandler(cfg.Service))

		r.Get("/off-days", listOffDaysHandler(cfg.Service))
		r.Post("/off-days", createOffDayHandler(cfg.Service))
		r.Delete("/off-days/{id}", deleteOffDayHandler(cfg.Service))
	})

	r.Route("/slots", func(r chi.Router) {
		r.Get("/available", availableSlotsHandler(cfg.Service))
		r.Post("/book", bookSlotHandler(cfg.Service))
		r.Post("/block", blockSlotHandler(cfg.Service))
		r.Delete("/block/{id}", unblockSlotHandler(cfg.Service))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", listAppointmentsHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Service))
		r.Post("/{id}/complete", completeAppointmentHandler(cfg.Service))
	})

	return r
}
