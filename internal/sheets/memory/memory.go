package memory

import (
	"context"
	"fmt"
	"sync"

	"finboard/internal/sheets"
)

// Writer keeps exported rows in memory, in append order.
type Writer struct {
	mu      sync.Mutex
	rows    []sheets.Row
	appends int
}

var (
	_ sheets.TransactionWriter = (*Writer)(nil)
	_ sheets.TransactionReader = (*Writer)(nil)
)

func New() *Writer {
	return &Writer{}
}

// Append stores the row and returns a synthetic row reference.
func (w *Writer) Append(_ context.Context, r sheets.Row) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("append row: missing id")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, r)
	w.appends++
	return fmt.Sprintf("mem:%d", w.appends), nil
}

func (w *Writer) Delete(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.rows[:0]
	for _, r := range w.rows {
		if r.ID != id {
			out = append(out, r)
		}
	}
	w.rows = out
	return nil
}

func (w *Writer) ReadRows(_ context.Context) ([]sheets.Row, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sheets.Row(nil), w.rows...), nil
}
