// Package router assembles the HTTP routes and middleware stack.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openphi/deidentify/internal/http/handlers"
	httpmiddleware "github.com/openphi/deidentify/internal/http/middleware"
	"github.com/openphi/deidentify/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Deidentify         *handlers.DeidentifyHandler
	Audit              *handlers.AuditHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AdminJWTSecret     string
	RateLimitPerMinute int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	if cfg.Deidentify == nil {
		panic("router: deidentify handler cannot be nil")
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           600,
		}))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Get("/health", cfg.Deidentify.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Document processing API
	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerMinute))
		}

		api.Post("/deidentify", cfg.Deidentify.Deidentify)
		api.Post("/jobs", cfg.Deidentify.CreateJob)
		api.Get("/jobs/{jobID}", cfg.Deidentify.GetJob)
		api.Get("/download/{fileID}", cfg.Deidentify.Download)
		api.Get("/reports/{fileID}", cfg.Deidentify.GetReport)
		api.Get("/dashboard", cfg.Deidentify.GetDashboard)
	})

	// Admin endpoints (JWT-protected)
	if cfg.Audit != nil && cfg.AdminJWTSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/audit/events", cfg.Audit.ListEvents)
		})
	}

	return r
}
