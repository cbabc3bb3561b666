// Package router wires the HTTP surface: the tool endpoints the voice agent
// calls, the JWT-protected org settings API, and the operational endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/frontdeskhq/receptionist-platform/internal/http/handlers"
	httpmiddleware "github.com/frontdeskhq/receptionist-platform/internal/http/middleware"
	"github.com/frontdeskhq/receptionist-platform/internal/org"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Tools              *handlers.ToolsHandler
	OrgHandler         *org.Handler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// ToolRateLimit caps tool calls per second per IP; zero disables it.
	ToolRateLimit float64
	ToolRateBurst int
}

// New creates a Chi router with all routes configured.
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

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Tool endpoints. The platform edge authenticates the voice agent and
	// stamps the routing org id header; a request without it is a
	// misrouted call, not a conversation to answer.
	if cfg.Tools != nil {
		r.Route("/tools", func(tools chi.Router) {
			tools.Use(requireOrgID)
			if cfg.ToolRateLimit > 0 {
				tools.Use(httpmiddleware.RateLimit(cfg.ToolRateLimit, cfg.ToolRateBurst))
			}
			tools.Post("/check-availability", cfg.Tools.CheckAvailability)
			tools.Post("/book-appointment", cfg.Tools.BookAppointment)
			tools.Post("/cancel-appointment", cfg.Tools.CancelAppointment)
			tools.Post("/reschedule-appointment", cfg.Tools.RescheduleAppointment)
		})
	}

	// Org settings surface, used by the tenant settings UI.
	if cfg.OrgHandler != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin/orgs/{orgID}", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/settings", cfg.OrgHandler.GetSettings)
			admin.Put("/settings", cfg.OrgHandler.UpdateSettings)
		})
	}

	return r
}
