package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bulksend/bulksend/internal/handler"
	"github.com/bulksend/bulksend/internal/observability"
	"github.com/bulksend/bulksend/internal/server/middleware"
)

// Config configures the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	APIKey       string
	CORSOrigins  []string
	Handlers     *handler.Handlers
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// New builds the chi router and wraps it in an *http.Server.
func New(cfg Config) *http.Server {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.TracingMiddleware())
	r.Use(middleware.MetricsMiddleware(cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", middleware.APIKeyHeader, "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := cfg.Handlers

	// Operational surface: unauthenticated, not part of spec.md's HTTP API.
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Handle("/metrics", observability.MetricsHandler())

	// Public send-pipeline endpoints: tracking pixel must never 4xx, and the
	// provider results callback authenticates itself via its own payload
	// shape rather than the API key.
	r.Get("/v1/events/open", h.Events.Open)
	r.Post("/v1/events/results", h.Events.Results)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.APIKey))

		r.Post("/v1/messages", h.Messages.Submit)
		r.Get("/v1/topics/{id}", h.Topics.Get)
		r.Delete("/v1/topics/{id}", h.Topics.Delete)
		r.Get("/v1/events/counts/sent", h.Events.CountsSent)
	})

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
