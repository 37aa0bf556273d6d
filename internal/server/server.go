// Package server assembles the HTTP surface: the chi router, the global
// middleware chain and the /api routes with their permission gates.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/getscaley/scaley/internal/handler"
	"github.com/getscaley/scaley/internal/metrics"
	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/server/middleware"
	"github.com/getscaley/scaley/internal/server/render"
	"github.com/getscaley/scaley/internal/service"
	"github.com/getscaley/scaley/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	MaxBodySize     int64 // bytes
	CORSOrigins     []string
	IPAllowlist     []string

	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool

	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration

	// Development adds error detail to 4xx/5xx bodies.
	Development bool
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             4000,
		ShutdownTimeout:  30 * time.Second,
		MaxBodySize:      1 << 20, // 1MB
		RateLimitEnabled: true,
		RateLimitMax:     100,
		RateLimitWindow:  15 * time.Minute,
	}
}

// Deps are the collaborators the routes are served from. Recorder and
// Metrics are optional.
type Deps struct {
	Store    *store.Store
	Auth     *service.AuthService
	Admins   *service.AdminService
	Recorder middleware.ActivityRecorder
	Metrics  *metrics.Metrics
}

// Server is the top-level HTTP server. It owns the chi router and the
// listener lifecycle.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	errs       *render.Errors
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired. It fails only
// when the IP allowlist contains an unparseable entry.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		errs:   render.NewErrors(logger, cfg.Development),
		logger: logger,
	}
	if err := s.setupRouter(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRouter() error {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recoverer(s.errs))
	if s.deps.Metrics != nil {
		r.Use(middleware.Metrics(s.deps.Metrics))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(s.corsOptions()))

	allowlist, err := middleware.IPAllowlist(s.cfg.IPAllowlist, s.errs)
	if err != nil {
		return fmt.Errorf("ip allowlist: %w", err)
	}
	r.Use(allowlist)
	if s.cfg.RateLimitEnabled {
		r.Use(middleware.RateLimit(s.cfg.RateLimitMax, s.cfg.RateLimitWindow, s.errs))
	}
	if s.deps.Recorder != nil {
		r.Use(middleware.Activity(s.deps.Recorder))
	}
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	r.Use(chimw.Compress(5))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errs.Fail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.errs.Fail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	if s.deps.Metrics != nil {
		s.deps.Metrics.RegisterDB(s.deps.Store.DB(), "scaley")
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	authH := handler.NewAuthHandler(s.deps.Auth, s.errs)
	adminH := handler.NewAdminHandler(s.deps.Admins, s.errs)
	sysH := handler.NewSystemHandler(s.deps.Store, s.errs)

	authn := middleware.Authenticate(s.deps.Auth, s.errs)
	can := func(perm string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(s.deps.Auth, s.errs, perm)
	}

	// --- API routes ---
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", sysH.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
			r.With(authn).Get("/me", authH.Me)
		})

		// Everything below requires a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Route("/admins", func(r chi.Router) {
				r.With(can(model.PermAdminRead)).Get("/", adminH.List)
				r.With(can(model.PermAdminCreate)).Post("/", adminH.Create)
				r.With(can(model.PermAdminRead)).Get("/{idOrUuid}", adminH.Get)
				r.With(can(model.PermAdminUpdate)).Put("/{idOrUuid}", adminH.Update)
				r.With(can(model.PermAdminDelete)).Delete("/{idOrUuid}", adminH.Delete)
			})

			r.With(can(model.PermRoleRead)).Get("/roles", sysH.Roles)
			r.With(can(model.PermActivityRead)).Get("/activity", sysH.Activity)
		})
	})

	s.router = r
	return nil
}

func (s *Server) corsOptions() cors.Options {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// Run listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests for at most ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
