package session

import (
	"context"
	"sync"
	"time"

	"finboard/internal/auth"
	"finboard/internal/log"
	"finboard/internal/store"
)

// Registry maps (token, tab) pairs to workspaces. Workspaces idle for longer than IdleTimeout are dropped.
type Registry struct {
	store       store.RecordStore
	tokens      *auth.Tokens
	cfg         Config
	idleTimeout time.Duration
	logger      *log.Logger

	mu         sync.Mutex
	workspaces map[string]map[string]*Workspace
}

func NewRegistry(rs store.RecordStore, tokens *auth.Tokens, cfg Config, idleTimeout time.Duration) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &Registry{
		store:       rs,
		tokens:      tokens,
		cfg:         cfg,
		idleTimeout: idleTimeout,
		logger:      cfg.Logger.WithComponent(log.ComponentSession),
		workspaces:  make(map[string]map[string]*Workspace),
	}
}

// Workspace returns the workspace of a tab, creating it on first use.
// The token must be valid; an unknown token yields apperr.ErrAuthRequired.
func (r *Registry) Workspace(ctx context.Context, token, tabID string) (*Workspace, error) {
	u, err := r.tokens.Lookup(token)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tabs, ok := r.workspaces[token]
	if !ok {
		tabs = make(map[string]*Workspace)
		r.workspaces[token] = tabs
	}
	w, ok := tabs[tabID]
	if !ok || w.Closed() {
		w = NewWorkspace(tabID, r.store, r.tokens.Session(token), r.cfg, func() { r.Logout(token) })
		tabs[tabID] = w
		r.logger.InfoContext(ctx, "Workspace opened", log.FieldUserID, u.ID, log.FieldTabID, tabID)
	}
	w.Touch()
	return w, nil
}

// Logout revokes the token and clears every tab opened with it.
func (r *Registry) Logout(token string) {
	r.mu.Lock()
	tabs := r.workspaces[token]
	delete(r.workspaces, token)
	r.mu.Unlock()

	r.tokens.Revoke(token)
	for _, w := range tabs {
		w.Close()
	}
	if len(tabs) > 0 {
		r.logger.Info("Session logged out", log.FieldCount, len(tabs))
	}
}

// CleanExpired drops idle workspaces and returns how many were removed.
func (r *Registry) CleanExpired() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := r.cfg.Now().Add(-r.idleTimeout)

	var expired []*Workspace
	r.mu.Lock()
	for token, tabs := range r.workspaces {
		for id, w := range tabs {
			if w.LastUsed().Before(cutoff) || w.Closed() {
				expired = append(expired, w)
				delete(tabs, id)
			}
		}
		if len(tabs) == 0 {
			delete(r.workspaces, token)
		}
	}
	r.mu.Unlock()

	for _, w := range expired {
		w.Close()
	}
	return len(expired)
}

// Len returns the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tabs := range r.workspaces {
		n += len(tabs)
	}
	return n
}

// CloseAll closes every workspace, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]map[string]*Workspace)
	r.mu.Unlock()
	for _, tabs := range all {
		for _, w := range tabs {
			w.Close()
		}
	}
}
