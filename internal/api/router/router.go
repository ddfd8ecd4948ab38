package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/chat-commerce-agent/internal/channels/messenger"
	"github.com/wolfman30/chat-commerce-agent/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/chat-commerce-agent/internal/http/middleware"
	"github.com/wolfman30/chat-commerce-agent/internal/observability/metrics"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	HealthChecks   map[string]HealthCheck

	Messenger      *messenger.WebhookHandler
	AdminTest      *handlers.AdminTestMessageHandler
	AdminAnalytics *handlers.AdminAnalyticsHandler
	AdminCustomers *handlers.AdminCustomersHandler

	AdminAuthSecret    string
	CORSAllowedOrigins []string
	AdminRateLimitRPS  float64
	AdminRateBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.HTTPMetrics))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Messenger != nil {
			public.Route("/webhooks/messenger", func(r chi.Router) {
				r.Get("/", cfg.Messenger.HandleVerification)
				r.Post("/", cfg.Messenger.HandleInbound)
			})
		}
	})

	// Admin routes (HS256 JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.Compress(5))
			if cfg.AdminRateLimitRPS > 0 {
				admin.Use(httpmiddleware.RateLimit(cfg.AdminRateLimitRPS, cfg.AdminRateBurst))
			}
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.AdminAnalytics != nil {
				admin.Get("/analytics/report", cfg.AdminAnalytics.GetReport)
			}
			if cfg.AdminCustomers != nil {
				admin.Get("/customers/{customerID}/tags", cfg.AdminCustomers.GetCustomerTags)
				admin.Get("/orders/{orderID}", cfg.AdminCustomers.GetOrder)
			}
			if cfg.AdminTest != nil {
				admin.With(httpmiddleware.RequireRole(httpmiddleware.RoleAdmin)).
					Post("/test/message", cfg.AdminTest.SendTestMessage)
			}
		})
	}

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		writeJSON(w, status, resp)
	}
}
