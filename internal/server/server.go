package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/api/ws"
	"github.com/gosuda/tally/internal/audit"
	"github.com/gosuda/tally/internal/auth"
	"github.com/gosuda/tally/internal/config"
	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/enterprise"
	"github.com/gosuda/tally/internal/server/middleware"
	"github.com/gosuda/tally/internal/store/postgres"
	redisstore "github.com/gosuda/tally/internal/store/redis"
	"github.com/gosuda/tally/internal/telemetry"
)

const healthTimeout = 2 * time.Second

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Store    *postgres.Store
	PubSub   *redisstore.PubSub
	Hub      *ws.Hub
	Auth     *auth.Service
	Audits   *audit.Service
	Features *enterprise.Validator
	// Platforms reports whether a messenger platform is configured.
	Platforms func(string) bool
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all routes wired. ctx bounds the background
// cleanup of the rate limiters.
func New(ctx context.Context, cfg *config.Config, d Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(telemetry.Middleware)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
	}

	authn := middleware.Auth(cfg.JWT.Secret, d.Auth)

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Unauthenticated group for auth endpoints.
	// 2. Authenticated group for all other endpoints.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, 5, 10))

			api := humachi.New(r, apiConfig("Tally Auth API"))
			registerAuthRoutes(api, d)
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Use(middleware.RequireOrganization())
			r.Use(middleware.RateLimit(ctx, 100, 200))

			api := humachi.New(r, apiConfig("Tally API"))
			registerAccountRoutes(api, d)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireFeature(d.Features, enterprise.FeatureAudits))
				registerAuditRoutes(humachi.New(r, apiConfig("Tally Audit API")), d)
			})
		})
	})

	// WebSocket routes.
	router.Route("/ws", func(r chi.Router) {
		r.Use(authn)
		r.Use(middleware.RequireOrganization())
		r.Use(middleware.RequireFeature(d.Features, enterprise.FeatureAudits))
		r.Use(middleware.RequirePermission(domain.EntityAudit, domain.ActionRead))
		registerWSRoutes(r, d.Hub)
	})

	router.Get("/healthz", healthHandler(map[string]func(context.Context) error{
		"postgres": d.Store.Ping,
		"redis":    d.PubSub.Ping,
	}))
	router.Handle("/metrics", promhttp.Handler())

	return s
}

func apiConfig(title string) huma.Config {
	c := huma.DefaultConfig(title, "1.0.0")
	c.Servers = []*huma.Server{
		{URL: "/api/v1"},
	}
	return c
}

// healthHandler runs every check and answers 503 when any of them fails.
func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn().Err(err).Str("check", name).Msg("health check failed")
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = "unavailable"
				continue
			}
			body[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
