package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/avast/retry-go"

	"finboard/internal/amqp"
	"finboard/internal/auth"
	"finboard/internal/core"
	sheetsmem "finboard/internal/sheets/memory"
	"finboard/internal/store"
	"finboard/internal/store/memory"
)

func setup(t *testing.T) (*SyncWorker, store.RecordStore, *sheetsmem.Writer, context.Context) {
	t.Helper()
	rs := memory.New([]core.Category{{Name: "Groceries", Type: core.KindExpense}}, nil).RecordStore()
	writer := sheetsmem.New()
	ctx := auth.WithUser(context.Background(), auth.User{ID: "alice"})
	return NewSyncWorker(rs, writer, nil), rs, writer, ctx
}

func TestHandleChangeExportsCreatedTransaction(t *testing.T) {
	w, rs, writer, ctx := setup(t)
	cats, _ := rs.Categories.List(ctx, nil)
	tx, err := rs.Transactions.Create(ctx, core.Transaction{
		Date:       "2024-03-02",
		Type:       core.KindExpense,
		Amount:     42,
		CategoryID: cats[0].ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := w.HandleChange(context.Background(), amqp.NewChangeMessage("transactions", "create", tx.ID, "alice")); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}

	rows, _ := writer.ReadRows(ctx)
	if len(rows) != 1 {
		t.Fatalf("rows = %+v, want 1", rows)
	}
	if rows[0].ID != tx.ID || rows[0].Category != "Groceries" || rows[0].Amount != 42 || rows[0].Date != "2024-03-02" {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestHandleChangeRedeliveredCreateIsSkipped(t *testing.T) {
	w, rs, writer, ctx := setup(t)
	tx, _ := rs.Transactions.Create(ctx, core.Transaction{Date: "2024-03-02", Type: core.KindExpense, Amount: 10})
	msg := amqp.NewChangeMessage("transactions", "create", tx.ID, "alice")

	for i := 0; i < 2; i++ {
		if err := w.HandleChange(ctx, msg); err != nil {
			t.Fatalf("HandleChange #%d: %v", i+1, err)
		}
	}
	if rows, _ := writer.ReadRows(ctx); len(rows) != 1 {
		t.Fatalf("rows = %+v, want exactly one", rows)
	}
}

func TestHandleChangeUpdateReplacesRow(t *testing.T) {
	w, rs, writer, ctx := setup(t)
	tx, _ := rs.Transactions.Create(ctx, core.Transaction{Date: "2024-03-02", Type: core.KindExpense, Amount: 10})
	w.HandleChange(ctx, amqp.NewChangeMessage("transactions", "create", tx.ID, "alice"))

	tx.Amount = 15
	if _, err := rs.Transactions.Update(ctx, tx.ID, tx); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := w.HandleChange(ctx, amqp.NewChangeMessage("transactions", "update", tx.ID, "alice")); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}

	rows, _ := writer.ReadRows(ctx)
	if len(rows) != 1 || rows[0].Amount != 15 {
		t.Errorf("rows = %+v, want one row with amount 15", rows)
	}
}

func TestHandleChangeDeleteAndVanished(t *testing.T) {
	w, rs, writer, ctx := setup(t)
	tx, _ := rs.Transactions.Create(ctx, core.Transaction{Date: "2024-03-02", Type: core.KindIncome, Amount: 100})
	w.HandleChange(ctx, amqp.NewChangeMessage("transactions", "create", tx.ID, "alice"))

	if err := rs.Transactions.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// A late update for a deleted transaction removes the row too.
	if err := w.HandleChange(ctx, amqp.NewChangeMessage("transactions", "update", tx.ID, "alice")); err != nil {
		t.Fatalf("HandleChange update: %v", err)
	}
	if rows, _ := writer.ReadRows(ctx); len(rows) != 0 {
		t.Fatalf("rows = %+v, want none", rows)
	}
	if err := w.HandleChange(ctx, amqp.NewChangeMessage("transactions", "delete", tx.ID, "alice")); err != nil {
		t.Fatalf("HandleChange delete: %v", err)
	}
}

func TestHandleChangeIgnoresOtherResources(t *testing.T) {
	w, _, writer, ctx := setup(t)
	if err := w.HandleChange(ctx, amqp.NewChangeMessage("banks", "create", "b-1", "alice")); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	if rows, _ := writer.ReadRows(ctx); len(rows) != 0 {
		t.Errorf("rows = %+v, want none", rows)
	}
}

func TestHandleChangeRejectsMessageWithoutUser(t *testing.T) {
	w, _, _, ctx := setup(t)
	err := w.HandleChange(ctx, &amqp.ChangeMessage{Resource: "transactions", Operation: "create", ID: "tx-1"})
	if err == nil || !strings.Contains(err.Error(), amqp.ErrInvalidMessage.Error()) {
		t.Fatalf("err = %v, want invalid message", err)
	}
	if retry.IsRecoverable(err) {
		t.Error("invalid messages should not be retried")
	}
}
