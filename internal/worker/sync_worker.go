package worker

import (
	"context"
	"fmt"

	"github.com/avast/retry-go"

	"finboard/internal/amqp"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/sheets"
	"finboard/internal/store"
)

// SyncWorker mirrors transaction changes into a spreadsheet.
type SyncWorker struct {
	store  store.RecordStore
	sheets sheets.TransactionWriter
	// reader is set when the writer can list its rows; creates are then skipped if already exported.
	reader sheets.TransactionReader
	logger *log.Logger
}

func NewSyncWorker(rs store.RecordStore, writer sheets.TransactionWriter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	reader, _ := writer.(sheets.TransactionReader)
	return &SyncWorker{
		store:  rs,
		sheets: writer,
		reader: reader,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange processes a single change message. Messages about other resources are ignored.
//
// Creates append a row unless it is already there. Updates replace the row. Deletes remove it.
// A transaction that no longer exists when the message arrives is treated as deleted.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Resource != store.ResourceTransactions {
		return nil
	}
	if msg.ID == "" || msg.UserID == "" {
		return retry.Unrecoverable(fmt.Errorf("%w: missing id or user", amqp.ErrInvalidMessage))
	}

	w.logger.InfoContext(ctx, "Processing change message",
		log.FieldOperation, msg.Operation,
		log.FieldRecordID, msg.ID,
		log.FieldUserID, msg.UserID)

	ctx = auth.WithUser(ctx, auth.User{ID: msg.UserID})

	if msg.Operation == log.OpDelete {
		if err := w.sheets.Delete(ctx, msg.ID); err != nil {
			return fmt.Errorf("delete transaction row: %w", err)
		}
		return nil
	}

	tx, found, err := w.transaction(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get transaction from store: %w", err)
	}
	if !found {
		w.logger.WarnContext(ctx, "Transaction gone before export, removing row", log.FieldRecordID, msg.ID)
		return w.sheets.Delete(ctx, msg.ID)
	}

	switch msg.Operation {
	case log.OpUpdate:
		if err := w.sheets.Delete(ctx, msg.ID); err != nil {
			return fmt.Errorf("replace transaction row: %w", err)
		}
	case log.OpCreate:
		exported, err := w.exported(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("read exported rows: %w", err)
		}
		if exported {
			w.logger.InfoContext(ctx, "Transaction already exported, skipping", log.FieldRecordID, msg.ID)
			return nil
		}
	}

	ref, err := w.sheets.Append(ctx, sheets.RowFromTransaction(tx, w.categoryName(ctx, tx.CategoryID)))
	if err != nil {
		return fmt.Errorf("append transaction row: %w", err)
	}

	w.logger.InfoContext(ctx, "Exported transaction", log.FieldRecordID, msg.ID, "sheets_ref", ref)
	return nil
}

func (w *SyncWorker) transaction(ctx context.Context, id string) (core.Transaction, bool, error) {
	txs, err := w.store.Transactions.List(ctx, nil)
	if err != nil {
		return core.Transaction{}, false, err
	}
	for _, t := range txs {
		if t.ID == id {
			return t, true, nil
		}
	}
	return core.Transaction{}, false, nil
}

// exported reports whether a row for id is already in the sheet. Redelivered creates hit this.
func (w *SyncWorker) exported(ctx context.Context, id string) (bool, error) {
	if w.reader == nil {
		return false, nil
	}
	rows, err := w.reader.ReadRows(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// categoryName resolves a category id. Lookup failures export the row without a category.
func (w *SyncWorker) categoryName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	cats, err := w.store.Categories.List(ctx, nil)
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to list categories", log.FieldError, err)
		return ""
	}
	for _, c := range cats {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}
