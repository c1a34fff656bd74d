package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicdesk/clinicdesk/internal/http/handlers"
	httpmiddleware "github.com/clinicdesk/clinicdesk/internal/http/middleware"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	Availability     *handlers.AvailabilityHandler
	Bookings         *handlers.BookingsHandler
	Procedures       *handlers.ProceduresHandler
	CalendarWS       *handlers.CalendarWSHandler
	CalendarSettings *handlers.CalendarSettingsHandler
	StaffAuthSecret  string
	MetricsHandler   http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Org-scoped read surface
	r.Group(func(api chi.Router) {
		api.Use(requireOrgID)
		api.Route("/api/v1", func(v1 chi.Router) {
			if cfg.Availability != nil {
				v1.Post("/availability/check", cfg.Availability.Check)
			}
			if cfg.Procedures != nil {
				v1.Get("/procedures", cfg.Procedures.List)
			}
			if cfg.CalendarSettings != nil {
				v1.Get("/calendar/settings", cfg.CalendarSettings.Get)
			}
			if cfg.Bookings != nil {
				v1.Get("/bookings/{id}", cfg.Bookings.Get)
				v1.Get("/providers/{id}/bookings", cfg.Bookings.ListForProvider)
			}

			// Mutations require staff auth on top of the org scope.
			if cfg.Bookings != nil {
				v1.Group(func(protected chi.Router) {
					protected.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))
					protected.Post("/bookings", cfg.Bookings.Create)
					protected.Patch("/bookings/{id}", cfg.Bookings.Update)
				})
			}
		})
		if cfg.CalendarWS != nil {
			api.Get("/ws/calendar", cfg.CalendarWS.Serve)
		}
	})

	return r
}
