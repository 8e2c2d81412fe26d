package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"finboard/internal/apperr"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/resource"
	"finboard/internal/store"
	"finboard/internal/store/memory"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newRegistry(t *testing.T) (*Registry, *auth.Tokens, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	tokens := auth.ParseStatic("tok-a:alice,tok-b:bob")
	rs := memory.New(memory.DefaultCategories(), memory.DefaultCurrencies()).RecordStore()
	cfg := Config{CacheTTL: time.Minute, CacheQuota: 1 << 20, FetchTimeout: time.Second, Now: clk.Now}
	return NewRegistry(rs, tokens, cfg, 30*time.Minute), tokens, clk
}

func TestActivateAllHydratesEveryResource(t *testing.T) {
	reg, _, _ := newRegistry(t)
	ctx := context.Background()

	w, err := reg.Workspace(ctx, "tok-a", "tab-1")
	if err != nil {
		t.Fatalf("Workspace: %v", err)
	}
	if err := w.ActivateAll(ctx); err != nil {
		t.Fatalf("ActivateAll: %v", err)
	}

	if st := w.Categories().State(); st.Phase != resource.PhaseLive || len(st.Data) == 0 {
		t.Errorf("categories: phase %v, %d rows; want live with seeded rows", st.Phase, len(st.Data))
	}
	if st := w.Reference().State(); len(st.Data) == 0 {
		t.Error("reference currencies not loaded")
	}
	if st := w.Settings().State(); st.Data.Currency != "EUR" {
		t.Errorf("settings currency = %q, want EUR", st.Data.Currency)
	}
	if len(w.Storage().Keys()) == 0 {
		t.Error("expected loads to be written through to tab storage")
	}
}

func TestWorkspacesAreIsolatedPerTab(t *testing.T) {
	reg, _, _ := newRegistry(t)
	ctx := context.Background()

	w1, _ := reg.Workspace(ctx, "tok-a", "tab-1")
	w2, _ := reg.Workspace(ctx, "tok-a", "tab-2")
	if w1 == w2 {
		t.Fatal("expected separate workspaces per tab")
	}
	again, _ := reg.Workspace(ctx, "tok-a", "tab-1")
	if again != w1 {
		t.Error("expected the same workspace for the same tab")
	}

	if err := w1.Banks().Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if len(w1.Storage().Keys()) == 0 {
		t.Fatal("tab-1 storage empty after load")
	}
	if len(w2.Storage().Keys()) != 0 {
		t.Errorf("tab-2 storage = %v, want empty", w2.Storage().Keys())
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2", reg.Len())
	}
}

func TestUnknownTokenIsRejected(t *testing.T) {
	reg, _, _ := newRegistry(t)
	if _, err := reg.Workspace(context.Background(), "nope", "tab-1"); !apperr.IsAuthRequired(err) {
		t.Fatalf("err = %v, want auth required", err)
	}
}

func TestTransactionMutationInvalidatesDashboard(t *testing.T) {
	reg, _, _ := newRegistry(t)
	ctx := context.Background()
	w, _ := reg.Workspace(ctx, "tok-a", "tab-1")

	dash := w.Dashboard()
	if err := dash.Activate(ctx); err != nil {
		t.Fatalf("Activate dashboard: %v", err)
	}
	if _, ok := dash.Cache().Get(""); !ok {
		t.Fatal("dashboard not cached after load")
	}

	march := w.Transactions(store.Filter{"month": "2024-03"})
	if err := march.Activate(ctx); err != nil {
		t.Fatalf("Activate march: %v", err)
	}
	all := w.Transactions(nil)
	if err := all.Activate(ctx); err != nil {
		t.Fatalf("Activate all: %v", err)
	}

	_, err := all.Create(ctx, core.Transaction{Date: "2024-03-02", Amount: 42, Type: core.KindExpense})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, ok := dash.Cache().Get(""); ok {
		t.Error("dashboard cache survived a transaction mutation")
	}
	if w.Dashboard() == dash {
		t.Error("expected a fresh dashboard resource after invalidation")
	}
	if w.Transactions(store.Filter{"month": "2024-03"}) == march {
		t.Error("expected other transaction variants to be dropped")
	}
	if got := len(all.State().Data); got != 1 {
		t.Errorf("transactions after reload = %d, want 1", got)
	}

	fresh := w.Dashboard()
	if err := fresh.Activate(ctx); err != nil {
		t.Fatalf("Activate fresh dashboard: %v", err)
	}
	if st := fresh.State(); st.Phase != resource.PhaseLive || len(st.Data.Transactions) != 1 {
		t.Errorf("fresh dashboard phase %v with %d transactions, want live with 1", st.Phase, len(st.Data.Transactions))
	}
}

func TestRevokedTokenForcesLogout(t *testing.T) {
	reg, tokens, _ := newRegistry(t)
	ctx := context.Background()
	w, _ := reg.Workspace(ctx, "tok-a", "tab-1")
	other, _ := reg.Workspace(ctx, "tok-a", "tab-2")
	bob, _ := reg.Workspace(ctx, "tok-b", "tab-1")

	if err := w.Banks().Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	tokens.Revoke("tok-a")

	err := w.Assets().Activate(ctx)
	if !apperr.IsAuthRequired(err) {
		t.Fatalf("err = %v, want auth required", err)
	}
	if !w.Closed() || !other.Closed() {
		t.Error("expected every tab of the session to be closed")
	}
	if bob.Closed() {
		t.Error("other user's workspace must stay open")
	}
	if keys := w.Storage().Keys(); len(keys) != 0 {
		t.Errorf("storage after logout = %v, want empty", keys)
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	reg, tokens, _ := newRegistry(t)
	ctx := context.Background()
	w, _ := reg.Workspace(ctx, "tok-b", "tab-1")

	reg.Logout("tok-b")

	if !w.Closed() {
		t.Error("workspace still open after logout")
	}
	if _, err := tokens.Lookup("tok-b"); !apperr.IsAuthRequired(err) {
		t.Errorf("token still valid after logout: %v", err)
	}
}

func TestCleanExpiredDropsIdleWorkspaces(t *testing.T) {
	reg, _, clk := newRegistry(t)
	ctx := context.Background()
	idle, _ := reg.Workspace(ctx, "tok-a", "tab-1")
	clk.Advance(20 * time.Minute)
	busy, _ := reg.Workspace(ctx, "tok-a", "tab-2")
	clk.Advance(15 * time.Minute)

	if n := reg.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if !idle.Closed() {
		t.Error("idle workspace not closed")
	}
	if busy.Closed() {
		t.Error("recently used workspace closed")
	}

	reopened, err := reg.Workspace(ctx, "tok-a", "tab-1")
	if err != nil {
		t.Fatalf("Workspace: %v", err)
	}
	if reopened == idle {
		t.Error("expected a new workspace after expiry")
	}
}

func TestBudgetsAreOptimistic(t *testing.T) {
	reg, _, _ := newRegistry(t)
	w, _ := reg.Workspace(context.Background(), "tok-a", "tab-1")
	if got := w.Budgets().Strategy(); got != resource.Optimistic {
		t.Errorf("budgets strategy = %v, want optimistic", got)
	}
	if got := w.Transactions(nil).Strategy(); got != resource.InvalidateAndReload {
		t.Errorf("transactions strategy = %v, want invalidate and reload", got)
	}
}
