package memory

import (
	"context"
	"testing"

	"finboard/internal/core"
	"finboard/internal/sheets"
)

func TestWriterAppendDeleteRead(t *testing.T) {
	ctx := context.Background()
	w := New()

	ref, err := w.Append(ctx, sheets.RowFromTransaction(core.Transaction{
		ID:     "tx-1",
		Date:   "2024-03-02",
		Amount: 12.5,
		Type:   core.KindExpense,
	}, "Food"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if _, err := w.Append(ctx, sheets.Row{ID: "tx-2", Type: core.KindIncome, Amount: 100}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := w.Delete(ctx, "tx-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := w.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete of a missing row should succeed: %v", err)
	}

	rows, _ := w.ReadRows(ctx)
	if len(rows) != 1 || rows[0].ID != "tx-2" {
		t.Fatalf("rows = %+v, want only tx-2", rows)
	}
}

func TestWriterRejectsRowWithoutID(t *testing.T) {
	if _, err := New().Append(context.Background(), sheets.Row{}); err == nil {
		t.Fatal("expected error for row without id")
	}
}
