// Package router wires the HTTP surface of the scheduling engine.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vivaclin/agenda-platform/internal/availability"
	"github.com/vivaclin/agenda-platform/internal/clinic"
	httpmiddleware "github.com/vivaclin/agenda-platform/internal/http/middleware"
	"github.com/vivaclin/agenda-platform/internal/notify"
	"github.com/vivaclin/agenda-platform/internal/scheduling"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	SchedulingHandler   *scheduling.Handler
	AvailabilityHandler *availability.Handler
	ClinicHandler       *clinic.Handler
	NotifyHandler       *notify.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Clinic-scoped engine endpoints.
	r.Group(func(api chi.Router) {
		api.Use(requireClinicID)

		if cfg.SchedulingHandler != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.SchedulingHandler.Create)
				r.Get("/{id}", cfg.SchedulingHandler.Get)
				r.Post("/{id}/confirm", cfg.SchedulingHandler.Confirm)
				r.Post("/{id}/complete", cfg.SchedulingHandler.Complete)
				r.Post("/{id}/cancel", cfg.SchedulingHandler.Cancel)
				r.Post("/{id}/no-show", cfg.SchedulingHandler.NoShow)
			})
		}
		if cfg.AvailabilityHandler != nil {
			api.Get("/availability", cfg.AvailabilityHandler.Query)
		}
	})

	// Admin endpoints, keyed by path rather than header.
	r.Route("/admin/clinics/{clinicID}", func(admin chi.Router) {
		if cfg.ClinicHandler != nil {
			admin.Get("/settings", cfg.ClinicHandler.GetSettings)
			admin.Put("/settings", cfg.ClinicHandler.UpdateSettings)
		}
		if cfg.NotifyHandler != nil {
			admin.Get("/notifications", cfg.NotifyHandler.List)
		}
	})

	return r
}
