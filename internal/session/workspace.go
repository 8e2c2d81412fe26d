// Package session wires one tab's resources over a private cache and tracks live workspaces.
package session

import (
	"context"
	"sync"
	"time"

	"finboard/internal/auth"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/log"
	"finboard/internal/resource"
	"finboard/internal/store"
)

type Config struct {
	CacheTTL     time.Duration
	CacheQuota   int
	FetchTimeout time.Duration
	Now          func() time.Time
	Logger       *log.Logger
}

// Workspace is the per-tab bundle: one storage, one instance of every resource.
// Resources are built on first use.
type Workspace struct {
	id       string
	store    store.RecordStore
	auth     auth.Authenticator
	cfg      Config
	storage  cache.Storage
	onLogout func()
	logger   *log.Logger

	mu           sync.Mutex
	closed       bool
	lastUsed     time.Time
	transactions map[string]*resource.List[core.Transaction]
	txCache      *cache.Cache[[]core.Transaction]
	assets       *resource.List[core.Asset]
	banks        *resource.List[core.Bank]
	cards        *resource.List[core.Card]
	categories   *resource.List[core.Category]
	budgets      *resource.List[core.Budget]
	settings     *resource.Settings
	reference    *resource.Resource[[]core.Currency]
	dashboard    *resource.Resource[dashboard.Data]
}

// NewWorkspace creates an empty workspace. onLogout runs once when a resource reports an expired session.
func NewWorkspace(id string, rs store.RecordStore, a auth.Authenticator, cfg Config, onLogout func()) *Workspace {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	w := &Workspace{
		id:           id,
		store:        rs,
		auth:         a,
		cfg:          cfg,
		storage:      cache.NewMemoryStorage(cfg.CacheQuota),
		onLogout:     onLogout,
		logger:       cfg.Logger.WithComponent(log.ComponentSession).With(log.FieldSessionID, id),
		lastUsed:     cfg.Now(),
		transactions: make(map[string]*resource.List[core.Transaction]),
	}
	w.txCache = newCache[[]core.Transaction](w, store.ResourceTransactions, true)
	return w
}

func (w *Workspace) ID() string { return w.id }

// Storage exposes the tab storage, mainly for inspection in tests.
func (w *Workspace) Storage() cache.Storage { return w.storage }

func newCache[D any](w *Workspace, prefix string, subKeyed bool) *cache.Cache[D] {
	return cache.New[D](w.storage, cache.Options{
		Prefix:   prefix,
		TTL:      w.cfg.CacheTTL,
		SubKeyed: subKeyed,
		Now:      w.cfg.Now,
		Logger:   w.cfg.Logger,
	})
}

func options[D any](w *Workspace, c *cache.Cache[D], strategy resource.Strategy, onMutated func()) resource.Options[D] {
	return resource.Options[D]{
		Cache:          c,
		Timeout:        w.cfg.FetchTimeout,
		Strategy:       strategy,
		Auth:           w.auth,
		OnAuthRequired: w.ForceLogout,
		OnMutated:      onMutated,
		Logger:         w.cfg.Logger,
	}
}

// Touch records activity for idle expiry.
func (w *Workspace) Touch() {
	w.mu.Lock()
	w.lastUsed = w.cfg.Now()
	w.mu.Unlock()
}

func (w *Workspace) LastUsed() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}

func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Transactions returns the transaction list for a filter. Equal filters share one instance.
func (w *Workspace) Transactions(f store.Filter) *resource.List[core.Transaction] {
	subKey := cache.SubKey(f)

	w.mu.Lock()
	defer w.mu.Unlock()
	if l, ok := w.transactions[subKey]; ok {
		return l
	}
	var l *resource.List[core.Transaction]
	opts := options(w, w.txCache, resource.InvalidateAndReload, func() { w.transactionsChanged(l) })
	opts.SubKey = subKey
	opts.Normalize = resource.NormalizeTransactions
	l = resource.NewList(w.store.Transactions, store.TransactionSchema, f, opts)
	w.transactions[subKey] = l
	return l
}

func (w *Workspace) Assets() *resource.List[core.Asset] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.assets == nil {
		opts := options(w, newCache[[]core.Asset](w, store.ResourceAssets, false), resource.InvalidateAndReload, w.dashboardChanged)
		opts.Normalize = resource.NormalizeAssets
		w.assets = resource.NewList(w.store.Assets, store.AssetSchema, nil, opts)
	}
	return w.assets
}

func (w *Workspace) Banks() *resource.List[core.Bank] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.banks == nil {
		opts := options(w, newCache[[]core.Bank](w, store.ResourceBanks, false), resource.InvalidateAndReload, nil)
		opts.Normalize = resource.NormalizeBanks
		w.banks = resource.NewList(w.store.Banks, store.BankSchema, nil, opts)
	}
	return w.banks
}

func (w *Workspace) Cards() *resource.List[core.Card] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cards == nil {
		opts := options(w, newCache[[]core.Card](w, store.ResourceCards, false), resource.InvalidateAndReload, nil)
		opts.Normalize = resource.NormalizeCards
		w.cards = resource.NewList(w.store.Cards, store.CardSchema, nil, opts)
	}
	return w.cards
}

func (w *Workspace) Categories() *resource.List[core.Category] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.categories == nil {
		opts := options(w, newCache[[]core.Category](w, store.ResourceCategories, false), resource.InvalidateAndReload, w.dashboardChanged)
		opts.Normalize = resource.NormalizeCategories
		w.categories = resource.NewList(w.store.Categories, store.CategorySchema, nil, opts)
	}
	return w.categories
}

func (w *Workspace) Budgets() *resource.List[core.Budget] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.budgets == nil {
		opts := options(w, newCache[[]core.Budget](w, store.ResourceBudgets, false), resource.Optimistic, nil)
		w.budgets = resource.NewList(w.store.Budgets, store.BudgetSchema, nil, opts)
	}
	return w.budgets
}

func (w *Workspace) Settings() *resource.Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.settings == nil {
		opts := options(w, newCache[core.Settings](w, store.ResourceSettings, false), resource.Optimistic, w.dashboardChanged)
		opts.Normalize = resource.NormalizeSettings
		w.settings = resource.NewSettings(w.store.Settings, opts)
	}
	return w.settings
}

func (w *Workspace) Reference() *resource.Resource[[]core.Currency] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reference == nil {
		opts := options(w, newCache[[]core.Currency](w, store.ResourceReference, false), resource.InvalidateAndReload, nil)
		opts.Name = store.ResourceReference
		opts.Fetch = w.store.Reference.ListCurrencies
		opts.Empty = func() []core.Currency { return []core.Currency{} }
		w.reference = resource.New(opts)
	}
	return w.reference
}

func (w *Workspace) Dashboard() *resource.Resource[dashboard.Data] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dashboard == nil {
		opts := options(w, newCache[dashboard.Data](w, store.ResourceDashboard, false), resource.InvalidateAndReload, nil)
		opts.Name = store.ResourceDashboard
		opts.Fetch = dashboard.Fetch(w.store)
		opts.Normalize = dashboard.Normalize
		opts.Empty = dashboard.Empty
		w.dashboard = resource.New(opts)
	}
	return w.dashboard
}

// transactionsChanged drops every other transaction variant; their cache entries are already gone.
func (w *Workspace) transactionsChanged(keep *resource.List[core.Transaction]) {
	w.mu.Lock()
	for k, l := range w.transactions {
		if l != keep {
			l.Close()
			delete(w.transactions, k)
		}
	}
	w.mu.Unlock()
	w.dashboardChanged()
}

// dashboardChanged invalidates the dashboard so its next activation starts cold.
func (w *Workspace) dashboardChanged() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dashboard != nil {
		w.dashboard.Close()
		w.dashboard = nil
	}
	newCache[dashboard.Data](w, store.ResourceDashboard, false).ClearAll()
}

// ForceLogout clears the tab storage, stops every resource and notifies the owner once.
func (w *Workspace) ForceLogout() {
	if !w.shutdown() {
		return
	}
	w.logger.Warn("Session expired, workspace cleared", log.FieldOperation, log.OpLogout)
	if w.onLogout != nil {
		w.onLogout()
	}
}

// Close releases the workspace without notifying the owner.
func (w *Workspace) Close() {
	w.shutdown()
}

type lifecycle interface {
	Close()
	Wait()
}

// built lists the resources created so far. Caller holds mu.
func (w *Workspace) built() []lifecycle {
	out := make([]lifecycle, 0, len(w.transactions)+8)
	for _, l := range w.transactions {
		out = append(out, l)
	}
	if w.assets != nil {
		out = append(out, w.assets)
	}
	if w.banks != nil {
		out = append(out, w.banks)
	}
	if w.cards != nil {
		out = append(out, w.cards)
	}
	if w.categories != nil {
		out = append(out, w.categories)
	}
	if w.budgets != nil {
		out = append(out, w.budgets)
	}
	if w.settings != nil {
		out = append(out, w.settings)
	}
	if w.reference != nil {
		out = append(out, w.reference)
	}
	if w.dashboard != nil {
		out = append(out, w.dashboard)
	}
	return out
}

func (w *Workspace) shutdown() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.closed = true
	for _, r := range w.built() {
		r.Close()
	}
	w.storage.Clear()
	return true
}

// Wait blocks until background revalidations of the built resources have finished.
func (w *Workspace) Wait() {
	w.mu.Lock()
	resources := w.built()
	w.mu.Unlock()
	for _, r := range resources {
		r.Wait()
	}
}

// ActivateAll hydrates every resource, as a tab does when it opens.
func (w *Workspace) ActivateAll(ctx context.Context) error {
	activators := []func(context.Context) error{
		w.Transactions(nil).Activate,
		w.Assets().Activate,
		w.Banks().Activate,
		w.Cards().Activate,
		w.Categories().Activate,
		w.Budgets().Activate,
		w.Settings().Activate,
		w.Reference().Activate,
		w.Dashboard().Activate,
	}
	for _, activate := range activators {
		if err := activate(ctx); err != nil {
			return err
		}
	}
	return nil
}
