package http

import (
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/resource"
	"finboard/internal/session"
	"finboard/internal/store"
)

// listRoute binds one record collection to its /api/{name} routes.
type listRoute[T store.Record] struct {
	schema store.Schema[T]
	// filtered routes take query-string filters; the others ignore the query.
	filtered bool
	get      func(ws *session.Workspace, f store.Filter) *resource.List[T]
}

var (
	transactionsRoute = listRoute[core.Transaction]{
		schema:   store.TransactionSchema,
		filtered: true,
		get:      func(ws *session.Workspace, f store.Filter) *resource.List[core.Transaction] { return ws.Transactions(f) },
	}
	assetsRoute = listRoute[core.Asset]{
		schema: store.AssetSchema,
		get:    func(ws *session.Workspace, _ store.Filter) *resource.List[core.Asset] { return ws.Assets() },
	}
	banksRoute = listRoute[core.Bank]{
		schema: store.BankSchema,
		get:    func(ws *session.Workspace, _ store.Filter) *resource.List[core.Bank] { return ws.Banks() },
	}
	cardsRoute = listRoute[core.Card]{
		schema: store.CardSchema,
		get:    func(ws *session.Workspace, _ store.Filter) *resource.List[core.Card] { return ws.Cards() },
	}
	categoriesRoute = listRoute[core.Category]{
		schema: store.CategorySchema,
		get:    func(ws *session.Workspace, _ store.Filter) *resource.List[core.Category] { return ws.Categories() },
	}
	budgetsRoute = listRoute[core.Budget]{
		schema: store.BudgetSchema,
		get:    func(ws *session.Workspace, _ store.Filter) *resource.List[core.Budget] { return ws.Budgets() },
	}
)

func (rt listRoute[T]) list(ws *session.Workspace, r *http.Request) (*resource.List[T], error) {
	if !rt.filtered {
		return rt.get(ws, nil), nil
	}
	f, err := parseFilter(r, rt.schema)
	if err != nil {
		return nil, err
	}
	return rt.get(ws, f), nil
}

func registerList[T store.Record](s *Server, mux *http.ServeMux, rt listRoute[T]) {
	base := "/api/" + rt.schema.Name
	mux.HandleFunc("GET "+base, s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
		l, err := rt.list(ws, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		serveState(s, w, r, l.Resource)
	}))
	mux.HandleFunc("POST "+base+"/refresh", s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
		l, err := rt.list(ws, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		refreshState(s, w, r, l.Resource)
	}))
	mux.HandleFunc("POST "+base, s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
		handleCreate(s, w, r, ws, rt)
	}))
	mux.HandleFunc("PUT "+base+"/{id}", s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
		handleUpdate(s, w, r, ws, rt)
	}))
	mux.HandleFunc("DELETE "+base+"/{id}", s.withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *session.Workspace) {
		handleDelete(s, w, r, ws, rt)
	}))
}

// hydrated returns the list a mutation applies to, loaded so optimistic edits start from real rows.
func hydrated[T store.Record](w http.ResponseWriter, r *http.Request, s *Server, ws *session.Workspace, rt listRoute[T]) (*resource.List[T], bool) {
	l, err := rt.list(ws, r)
	if err == nil {
		err = l.Ensure(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return l, true
}

func handleCreate[T store.Record](s *Server, w http.ResponseWriter, r *http.Request, ws *session.Workspace, rt listRoute[T]) {
	var rec T
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, ok := hydrated(w, r, s, ws, rt)
	if !ok {
		return
	}
	created, err := l.Create(r.Context(), rec)
	s.mutLog.LogMutation(r.Context(), rt.schema.Name, log.OpCreate, created.RecordID(), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/"+rt.schema.Name+"/"+created.RecordID()).
		JSON(mutationBody(created, l.State())).
		Write(w)
}

func handleUpdate[T store.Record](s *Server, w http.ResponseWriter, r *http.Request, ws *session.Workspace, rt listRoute[T]) {
	id := sanitizeInput(r.PathValue("id"))
	var rec T
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, ok := hydrated(w, r, s, ws, rt)
	if !ok {
		return
	}
	updated, err := l.Update(r.Context(), id, rec)
	s.mutLog.LogMutation(r.Context(), rt.schema.Name, log.OpUpdate, id, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(mutationBody(updated, l.State())).Write(w)
}

func handleDelete[T store.Record](s *Server, w http.ResponseWriter, r *http.Request, ws *session.Workspace, rt listRoute[T]) {
	id := sanitizeInput(r.PathValue("id"))
	l, ok := hydrated(w, r, s, ws, rt)
	if !ok {
		return
	}
	err := l.Delete(r.Context(), id)
	s.mutLog.LogMutation(r.Context(), rt.schema.Name, log.OpDelete, id, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// mutationBody pairs the stored record with the list as it stands after the mutation.
func mutationBody[T any](rec T, st resource.State[[]T]) map[string]any {
	return map[string]any{
		"record": rec,
		"state":  stateOf(st, st.Data),
	}
}
