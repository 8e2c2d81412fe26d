package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finboard/internal/dashboard"
	"finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/session"
)

// Options configures NewServer.
type Options struct {
	Addr     string
	Registry *session.Registry
	Builder  *dashboard.Builder
	// Ping reports backend readiness for /readyz. Nil means always ready.
	Ping              func(ctx context.Context) error
	RequestsPerMinute int
	Logger            *log.Logger
}

// Server is the JSON API in front of the session registry.
type Server struct {
	http.Server
	registry *session.Registry
	builder  *dashboard.Builder
	ping     func(ctx context.Context) error
	logger   *log.Logger
	mutLog   *log.StructuredLogger
	started  time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Builder == nil {
		opts.Builder = dashboard.NewBuilder(metrics.DefaultCalculators(), nil)
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		registry:         opts.Registry,
		builder:          opts.Builder,
		ping:             opts.Ping,
		logger:           logger,
		mutLog:           log.NewStructuredLogger(logger),
		started:          time.Now(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		securityDetector: security.NewDetector(),
	}
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	registerList(s, mux, transactionsRoute)
	registerList(s, mux, assetsRoute)
	registerList(s, mux, banksRoute)
	registerList(s, mux, cardsRoute)
	registerList(s, mux, categoriesRoute)
	registerList(s, mux, budgetsRoute)

	mux.HandleFunc("GET /api/reference", s.withWorkspace(s.handleReference))
	mux.HandleFunc("POST /api/reference/refresh", s.withWorkspace(s.handleRefreshReference))

	mux.HandleFunc("GET /api/settings", s.withWorkspace(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.withWorkspace(s.handlePutSettings))
	mux.HandleFunc("POST /api/settings/refresh", s.withWorkspace(s.handleRefreshSettings))
	mux.HandleFunc("POST /api/settings/hidden-categories/{id}", s.withWorkspace(s.handleHideCategory(true)))
	mux.HandleFunc("DELETE /api/settings/hidden-categories/{id}", s.withWorkspace(s.handleHideCategory(false)))

	mux.HandleFunc("GET /api/dashboard", s.withWorkspace(s.handleDashboard))
	mux.HandleFunc("POST /api/dashboard/refresh", s.withWorkspace(s.handleRefreshDashboard))

	mux.HandleFunc("POST /api/logout", s.handleLogout)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.rateLimitKey, s.onRateLimited)(handler)
	handler = s.securityDetector.Middleware(opts.Logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// rateLimitKey buckets by bearer token when present so tabs of one user share a budget.
func (s *Server) rateLimitKey(r *http.Request) string {
	if tok := bearerToken(r); tok != "" {
		return "tok:" + tok
	}
	return "ip:" + s.securityDetector.ExtractClientIP(r)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
	ErrorResponse(http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded, retry later").Write(w)
}

// Shutdown stops background routines, closes every workspace and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		if s.registry != nil {
			s.registry.CloseAll()
		}
	})
	return shutdownErr
}
