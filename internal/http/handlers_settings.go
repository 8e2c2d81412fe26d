package http

import (
	"net/http"

	"finboard/internal/apperr"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/session"
	"finboard/internal/store"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
	serveState(s, w, r, ws.Settings().Resource)
}

func (s *Server) handleRefreshSettings(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
	refreshState(s, w, r, ws.Settings().Resource)
}

// handlePutSettings replaces the settings record. The change is shown before the store confirms it.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
	var next core.Settings
	if err := decodeJSON(w, r, &next); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := next.Validate(); err != nil {
		s.writeError(w, r, apperr.Invalid(err))
		return
	}

	settings := ws.Settings()
	if err := settings.Ensure(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := settings.Update(r.Context(), next)
	s.mutLog.LogMutation(r.Context(), store.ResourceSettings, log.OpUpdate, "", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	StateResponse(settings.State()).Write(w)
}

// handleHideCategory adds or removes one category from the hidden list.
func (s *Server) handleHideCategory(hidden bool) workspaceHandler {
	return func(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
		id := sanitizeInput(r.PathValue("id"))
		if id == "" {
			s.writeError(w, r, apperr.New(apperr.CodeInvalidInput, "missing category id"))
			return
		}

		settings := ws.Settings()
		if err := settings.Ensure(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		err := settings.SetCategoryHidden(r.Context(), id, hidden)
		s.mutLog.LogMutation(r.Context(), store.ResourceSettings, "hide_category", id, err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		StateResponse(settings.State()).Write(w)
	}
}
