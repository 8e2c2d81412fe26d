package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/store"
	"finboard/internal/store/memory"
)

func reportStore(t *testing.T) StoreOpener {
	t.Helper()
	mem := memory.New([]core.Category{{Name: "Food", Type: core.KindExpense}}, nil)
	ctx := auth.WithUser(context.Background(), auth.User{ID: "alice"})
	for _, tx := range []core.Transaction{
		{Type: core.KindIncome, Date: "2024-03-02", Amount: 2500},
		{Type: core.KindExpense, Date: "2024-03-05", Amount: 1234.5},
		{Type: core.KindExpense, Date: "2024-02-10", Amount: 100},
	} {
		if _, err := mem.Transactions.Create(ctx, tx); err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}
	closed := false
	t.Cleanup(func() {
		if !closed {
			t.Errorf("store was not released")
		}
	})
	return func(context.Context) (store.RecordStore, func() error, error) {
		return mem.RecordStore(), func() error { closed = true; return nil }, nil
	}
}

func fixedNow() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

func runCmd(t *testing.T, open StoreOpener, args ...string) (string, error) {
	t.Helper()
	cmd := NewReportCmd(open, fixedNow)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReportText(t *testing.T) {
	out, err := runCmd(t, reportStore(t), "--user", "alice")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{
		"Dashboard for alice",
		"2,500.00",
		"1,234.50",
		"Transactions: 2 (1 income, 1 expense, 0 investment)",
		"Series",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReportJSON(t *testing.T) {
	out, err := runCmd(t, reportStore(t), "--user", "alice", "--period", "quarterly", "--json")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	var v dashboard.View
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if v.Counts.Total != 2 {
		t.Errorf("counts.total = %d, want 2", v.Counts.Total)
	}
	if len(v.Series) != 3 {
		t.Fatalf("series len = %d, want 3", len(v.Series))
	}
	if v.Series[1].Expense != 100 {
		t.Errorf("february expense = %v, want 100", v.Series[1].Expense)
	}
	if v.Metrics.Current.Income != 2500 {
		t.Errorf("current income = %v, want 2500", v.Metrics.Current.Income)
	}
}

func TestReportRejectsBadInput(t *testing.T) {
	never := func(context.Context) (store.RecordStore, func() error, error) {
		t.Fatal("store opened for invalid input")
		return store.RecordStore{}, nil, nil
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing user", nil},
		{"blank user", []string{"--user", "  "}},
		{"unknown period", []string{"--user", "alice", "--period", "weekly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, never, tt.args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
