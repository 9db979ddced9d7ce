// Package http exposes the JSON API over gorilla/mux.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"spendhelm/internal/aggregates"
	"spendhelm/internal/auth"
	"spendhelm/internal/cache"
	"spendhelm/internal/log"
	"spendhelm/internal/middleware/ratelimit"
	"spendhelm/internal/middleware/security"
	"spendhelm/internal/middleware/trace"
	"spendhelm/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services the handlers delegate to.
type Services struct {
	Auth        *services.AuthService
	Expenses    *services.ExpenseService
	Categories  *services.CategoryService
	Preferences *services.PreferenceService
	Analytics   *services.AnalyticsService
	Aggregates  *aggregates.Service
	Tokens      *auth.TokenManager
	Ready       Pinger
}

type Options struct {
	Addr               string
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	TrustedProxies     []string
	// Caches, when set, is stopped together with the server.
	Caches *cache.Manager
	Logger *log.Logger
}

type Server struct {
	http.Server
	svc      Services
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager
	logger   *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		svc:      svc,
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		caches:   opts.Caches,
		logger:   logger,
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.CORSAllowedOrigins),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "route not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// Public routes
	public := r.PathPrefix("/api").Subrouter()
	public.Use(s.limiter.Middleware(s.detector.ExtractClientIP, writeRateLimited))
	public.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	public.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, writeRateLimited))
	api.Use(auth.RequireBearer(s.svc.Tokens, writeError))

	api.HandleFunc("/auth/validate", s.handleValidate).Methods(http.MethodGet)
	api.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/auth/change-password", s.handleChangePassword).Methods(http.MethodPost)

	api.HandleFunc("/user/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/user/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/user/preferences", s.handleUpdatePreferences).Methods(http.MethodPut)

	api.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/expenses/{id}", s.handleGetExpense).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id}", s.handleUpdateExpense).Methods(http.MethodPut)
	api.HandleFunc("/expenses/{id}", s.handleDeleteExpense).Methods(http.MethodDelete)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id}", s.handleGetCategory).Methods(http.MethodGet)
	api.HandleFunc("/categories/{id}", s.handleDeleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/aggregates", s.handleListAggregates).Methods(http.MethodGet)
	api.HandleFunc("/aggregates/{user_id}/{period_type}/{period_start}", s.handleGetAggregate).Methods(http.MethodGet)

	// The tracer wraps everything so unmatched routes are logged too.
	var h http.Handler = r
	h = security.NewCORS(origins).Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// Shutdown stops background goroutines and then the HTTP server. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ready.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// session returns the caller's session. Routes behind RequireBearer always
// have one.
func session(r *http.Request) auth.Session {
	s, _ := auth.SessionFrom(r.Context())
	return s
}
