package http

import (
	"net/http"

	"finboard/internal/aggregate"
	"finboard/internal/apperr"
	"finboard/internal/session"
)

// dashboardPeriod reads ?period=monthly|quarterly|semester|yearly; empty means monthly.
func dashboardPeriod(r *http.Request) (aggregate.WindowKind, error) {
	period, err := aggregate.ParseWindowKind(sanitizeInput(r.URL.Query().Get("period")))
	if err != nil {
		return "", apperr.Invalid(err)
	}
	return period, nil
}

// handleDashboard answers with the derived view for the requested period.
// Only the raw inputs are cached; the view is rebuilt on every request.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
	period, err := dashboardPeriod(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res := ws.Dashboard()
	if err := res.Ensure(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	st := res.State()
	NewResponse().JSON(stateOf(st, s.builder.Build(st.Data, period))).Write(w)
}

func (s *Server) handleRefreshDashboard(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
	period, err := dashboardPeriod(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res := ws.Dashboard()
	if err := res.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	st := res.State()
	NewResponse().JSON(stateOf(st, s.builder.Build(st.Data, period))).Write(w)
}
