// Package router assembles the clinic API from the per-feature handlers.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/innarclinica/clinic-platform/internal/agenda"
	"github.com/innarclinica/clinic-platform/internal/auth"
	"github.com/innarclinica/clinic-platform/internal/availability"
	"github.com/innarclinica/clinic-platform/internal/electro"
	httpmiddleware "github.com/innarclinica/clinic-platform/internal/http/middleware"
	"github.com/innarclinica/clinic-platform/internal/notify"
	"github.com/innarclinica/clinic-platform/internal/pacientes"
	"github.com/innarclinica/clinic-platform/internal/recibos"
	"github.com/innarclinica/clinic-platform/internal/users"
	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Issuer              *auth.TokenIssuer
	AuthHandler         *auth.Handler
	AgendaHandler       *agenda.Handler
	ElectroHandler      *electro.Handler
	AvailabilityHandler *availability.Handler
	UsersHandler        *users.Handler
	PacientesHandler    *pacientes.Handler
	RecibosHandler      *recibos.Handler
	Hub                 *notify.Hub

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	if cfg.Issuer == nil {
		panic("router: token issuer required")
	}

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
	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.AuthHandler != nil {
		// Token-bucket limit on top of the per-account redis counter,
		// so credential stuffing cannot hammer bcrypt.
		r.With(httpmiddleware.RateLimit(1, 10)).Post("/api/auth/login", cfg.AuthHandler.Login)
	}
	// Waiting-room displays connect here without a session.
	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.HandleWebSocket)
	}

	// Endpoints behind a session token.
	r.Group(func(private chi.Router) {
		private.Use(auth.RequireAuth(cfg.Issuer))

		if cfg.AuthHandler != nil {
			private.Get("/api/auth/me", cfg.AuthHandler.Me)
		}
		if cfg.AgendaHandler != nil {
			private.Route("/api/turnos", func(r chi.Router) {
				r.Use(auth.RequireRoles(auth.RolRecepcion, auth.RolDoctor))
				r.Mount("/", cfg.AgendaHandler.Routes())
			})
		}
		if cfg.ElectroHandler != nil {
			private.Route("/api/citas-electro", func(r chi.Router) {
				r.Use(auth.RequireRoles(auth.RolElectro, auth.RolRecepcion))
				r.Mount("/", cfg.ElectroHandler.Routes())
			})
		}
		if cfg.AvailabilityHandler != nil {
			private.Route("/api/disponibilidad", func(r chi.Router) {
				r.Use(auth.RequireRoles(auth.RolRecepcion, auth.RolDoctor))
				r.Mount("/", cfg.AvailabilityHandler.Routes())
			})
		}
		if cfg.PacientesHandler != nil {
			private.Route("/api/pacientes", func(r chi.Router) {
				r.Use(auth.RequireRoles(auth.RolRecepcion, auth.RolElectro))
				r.Mount("/", cfg.PacientesHandler.Routes())
			})
		}
		if cfg.RecibosHandler != nil {
			private.Route("/api/recibos", func(r chi.Router) {
				r.Use(auth.RequireRoles(auth.RolRecepcion))
				r.Mount("/", cfg.RecibosHandler.Routes())
			})
		}
		if cfg.UsersHandler != nil {
			// The doctor picker is needed by reception, not just admins.
			private.With(auth.RequireRoles(auth.RolRecepcion, auth.RolDoctor)).
				Get("/api/doctores", cfg.UsersHandler.Doctors)

			// Admin only. RequireRoles with no extra roles lets only admin through.
			private.Route("/api/usuarios", func(r chi.Router) {
				r.Use(auth.RequireRoles())
				r.Mount("/", cfg.UsersHandler.Routes())
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
