package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// Store is the persistence the HTTP layer needs. *postgres.Store satisfies it.
type Store interface {
	v1.DataStore
	Ping(ctx context.Context) error
}

// AuthService covers both the auth endpoints and bearer token checks.
// *auth.Service satisfies it.
type AuthService interface {
	v1.AuthService
	middleware.TokenVerifier
}

// Pinger is an optional dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      Store
	auth       AuthService
	hub        *ws.Hub
	redis      Pinger // nil when Redis is disabled
	cfg        *config.Config
}

// New creates a Server with all routes wired. redis may be nil. gatherer backs
// the /metrics endpoint.
func New(ctx context.Context, cfg *config.Config, store Store, authSvc AuthService, hub *ws.Hub, redis Pinger, gatherer prometheus.Gatherer) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(requestLogger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		store:  store,
		auth:   authSvc,
		hub:    hub,
		redis:  redis,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Unauthenticated group for auth endpoints.
	// 2. Authenticated group for all other endpoints.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, 5, 10))

			authConfig := huma.DefaultConfig("boardsync Auth API", "1.0.0")
			authConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			authAPI := humachi.New(r, authConfig)
			registerAuthRoutes(authAPI, authSvc)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authSvc))
			r.Use(middleware.RateLimitByUser(ctx, 100, 200))

			apiConfig := huma.DefaultConfig("boardsync API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, store)
		})
	})

	// The websocket authenticates itself from the token query parameter.
	registerWSRoutes(router, hub)

	router.Get("/healthz", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", metricsHandler(gatherer))

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := `{"status":"ok"}`

	if err := s.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("healthz: postgres unreachable")
		status, body = http.StatusServiceUnavailable, `{"status":"unavailable","detail":"postgres"}`
	} else if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("healthz: redis unreachable")
			status, body = http.StatusServiceUnavailable, `{"status":"unavailable","detail":"redis"}`
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// requestLogger writes one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
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
