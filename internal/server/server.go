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
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	v1 "github.com/gosuda/campus/internal/api/v1"
	"github.com/gosuda/campus/internal/config"
	"github.com/gosuda/campus/internal/server/middleware"
	"github.com/gosuda/campus/internal/tenancy"
)

const readyTimeout = 2 * time.Second

// Store is the persistence the server needs. *postgres.Store satisfies it.
type Store interface {
	v1.DataStore
	Ping(ctx context.Context) error
}

// Revocations is the revoked-token lookup. *redis.Revocations satisfies it.
type Revocations interface {
	middleware.TokenRevocations
	Ping(ctx context.Context) error
}

// Deps are the collaborators New wires into the routes.
type Deps struct {
	Store       Store
	Revocations Revocations
	Auth        v1.AuthService
	OAuth       v1.OAuthProvider // nil disables Google sign-in
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Deps
}

// New creates a Server with all routes wired. ctx bounds the background
// sweepers of the rate limiters.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RememberClientIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.InstituteHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		deps:   deps,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
	}

	authn := middleware.Auth(middleware.AuthConfig{
		JWTSecret:  cfg.JWT.Secret,
		CookieName: cfg.Session.CookieName,
	}, deps.Revocations, deps.Store.Users())
	resolver := tenancy.NewResolver(deps.Store.Tenants(), deps.Store.Users(), cfg.Tenancy.BaseDomain)
	cookie := v1.SessionCookie{
		Name:   cfg.Session.CookieName,
		Domain: cfg.Session.CookieDomain,
		Secure: cfg.Session.CookieSecure,
	}

	// Mount API routes on /api/v1 with three sub-groups:
	// 1. Unauthenticated auth endpoints, limited per client IP.
	// 2. Authenticated catalog endpoints that are not tenant scoped.
	// 3. Authenticated endpoints scoped to the resolved institute.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst))

			api := newAPI(r, "Campus Auth API", true)
			registerAuthRoutes(api, deps.Auth, cookie)
			if deps.OAuth != nil {
				registerOAuthRoutes(api, deps.OAuth, deps.Auth, cookie)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)

			registerCatalogRoutes(newAPI(r, "Campus Catalog API", false), deps.Store)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSuperAdmin())

				registerAuditRoutes(newAPI(r, "Campus Audit API", false), deps.Store)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Use(middleware.ResolveTenant(resolver, deps.Store.SecurityEvents()))
			r.Use(middleware.RateLimit(ctx, cfg.RateLimit.TenantRPS, cfg.RateLimit.TenantBurst))

			registerSessionRoutes(newAPI(r, "Campus Session API", false))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireTenant())
				r.Use(middleware.RequireStaff())

				registerScopedRoutes(newAPI(r, "Campus API", false), deps.Store)
			})
		})
	})

	// Health checks (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	router.Get("/readyz", s.ready)

	return s
}

// newAPI mounts a huma API on r. Only one API per router serves the
// OpenAPI document and docs UI.
func newAPI(r chi.Router, title string, docs bool) huma.API {
	cfg := huma.DefaultConfig(title, "1.0.0")
	cfg.Servers = []*huma.Server{
		{URL: "/api/v1"},
	}
	if !docs {
		cfg.DocsPath = ""
		cfg.OpenAPIPath = ""
		cfg.SchemasPath = ""
	}
	return humachi.New(r, cfg)
}

// ready pings the database and Redis concurrently.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.deps.Store.Ping(ctx) })
	g.Go(func() error { return s.deps.Revocations.Ping(ctx) })

	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("server: not ready")
		writeStatus(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeStatus(w, http.StatusOK, "ok")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("server: listening")
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
