package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/gosuda/callbridge/internal/api/admin"
	"github.com/gosuda/callbridge/internal/api/botapi"
	"github.com/gosuda/callbridge/internal/api/ws"
	"github.com/gosuda/callbridge/internal/config"
	"github.com/gosuda/callbridge/internal/server/middleware"
)

// Deps are the components the HTTP surface dispatches to.
type Deps struct {
	Calls    botapi.Lifecycle
	Sessions admin.SessionReader
	// Events feeds the admin live stream. Nil disables it.
	Events ws.Subscriber
	Logger zerolog.Logger
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all routes wired. ctx bounds background work
// started by middleware.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(chimw.Recoverer)
	if cfg.Admin.Enabled() && len(cfg.Server.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Bot API: every request carries the shared bot token, health probe included.
	router.Group(func(r chi.Router) {
		if cfg.Server.RateLimitRPS > 0 {
			r.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
		}
		r.Use(middleware.BotToken(cfg.BotToken))

		api := humachi.New(r, botapi.NewConfig())
		registerBotRoutes(api, deps.Calls)
	})

	if cfg.Admin.Enabled() {
		hub := ws.NewHub(deps.Events,
			ws.WithOriginPatterns(originHosts(cfg.Server.CORSOrigins)...),
			ws.WithLogger(deps.Logger))

		router.Group(func(r chi.Router) {
			r.Use(middleware.AdminJWT(cfg.Admin.JWTSecret))

			adminConfig := huma.DefaultConfig("callbridge Admin API", "1.0.0")
			adminConfig.OpenAPIPath = "/admin/openapi"
			adminConfig.DocsPath = ""
			adminConfig.SchemasPath = "/admin/schemas"
			api := humachi.New(r, adminConfig)
			registerAdminRoutes(api, deps.Sessions, deps.Logger)
			registerWSRoutes(r, hub)
		})
		deps.Logger.Info().Bool("live_feed", deps.Events != nil).Msg("admin API enabled")
	}

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
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

// originHosts turns CORS origins into the host patterns WebSocket accept expects.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
