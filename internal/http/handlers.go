package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"finboard/internal/apperr"
	"finboard/internal/log"
	"finboard/internal/resource"
	"finboard/internal/session"
)

// workspaceHandler serves a request on behalf of one tab workspace.
type workspaceHandler func(w http.ResponseWriter, r *http.Request, ws *session.Workspace)

// withWorkspace resolves the bearer token and tab header to a workspace.
func (s *Server) withWorkspace(h workspaceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.registry == nil {
			ErrorResponse(http.StatusServiceUnavailable, "UNAVAILABLE", "no session registry configured").Write(w)
			return
		}
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, r, apperr.ErrAuthRequired)
			return
		}
		tab := tabID(r)
		ws, err := s.registry.Workspace(r.Context(), token, tab)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		h(w, r, ws)
	}
}

// writeError logs server-side failures and answers with the error envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	logger := log.FromContext(r.Context())
	switch {
	case status >= 500:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path, "error_type", log.ErrorTypeInternal)
	case status == http.StatusUnauthorized:
		logger.InfoContext(r.Context(), "Authentication required", log.FieldPath, r.URL.Path, "error_type", log.ErrorTypeAuth)
	}
	ErrorFrom(err).Write(w)
}

// serveState activates res and answers with its state. A resource left cold by a
// failed first load is retried, so a GET never serves a stuck error.
func serveState[D any](s *Server, w http.ResponseWriter, r *http.Request, res *resource.Resource[D]) {
	if err := res.Ensure(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	StateResponse(res.State()).Write(w)
}

// refreshState forces a reload of res.
func refreshState[D any](s *Server, w http.ResponseWriter, r *http.Request, res *resource.Resource[D]) {
	if err := res.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	StateResponse(res.State()).Write(w)
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
	serveState(s, w, r, ws.Reference())
}

func (s *Server) handleRefreshReference(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
	refreshState(s, w, r, ws.Reference())
}

// handleLogout clears every tab of the caller's session and revokes the token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" || s.registry == nil {
		s.writeError(w, r, apperr.ErrAuthRequired)
		return
	}
	s.registry.Logout(token)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Session logged out", log.FieldOperation, log.OpLogout)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the record store backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"backend": "ok"}
	if s.ping == nil {
		checks["backend"] = "not_configured"
	} else if err := s.ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["backend"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.registry == nil {
		checks["sessions"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["sessions"] = "ok"
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and session counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	workspaces := 0
	if s.registry != nil {
		workspaces = s.registry.Len()
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	writeMetric(w, "http_server_errors_total", "counter", "HTTP requests answered with 5xx", traceMetrics.ServerErrors)
	writeMetric(w, "rate_limit_rejections_total", "counter", "Requests refused by the rate limiter", s.rateLimiter.Rejected())
	writeMetric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", int64(s.rateLimiter.ActiveClients()))
	writeMetric(w, "suspicious_requests_total", "counter", "Total suspicious requests detected", s.securityDetector.Suspicious())
	writeMetric(w, "active_workspaces", "gauge", "Open tab workspaces", int64(workspaces))
	writeMetric(w, "uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func writeMetric(w http.ResponseWriter, name, kind, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, v)
}
