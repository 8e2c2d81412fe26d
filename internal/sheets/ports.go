// Package sheets defines the spreadsheet export port. Every transaction is one row.
package sheets

import (
	"context"

	"finboard/internal/core"
)

// Header is the first row of an export sheet.
var Header = []string{"ID", "Date", "Type", "Category", "Description", "Amount"}

// Row is the exported form of a transaction.
type Row struct {
	ID          string
	Date        string
	Type        core.Kind
	Category    string
	Description string
	Amount      core.Amount
}

func RowFromTransaction(t core.Transaction, category string) Row {
	return Row{
		ID:          t.ID,
		Date:        t.EffectiveDate(),
		Type:        t.Type,
		Category:    category,
		Description: t.Description,
		Amount:      t.Amount,
	}
}

// Values returns the cells of r in Header order.
func (r Row) Values() []any {
	return []any{r.ID, r.Date, string(r.Type), r.Category, r.Description, float64(r.Amount)}
}

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		Append(ctx context.Context, r Row) (rowRef string, err error)
		// Delete removes the row with the given transaction id. A missing row is not an error.
		Delete(ctx context.Context, id string) error
	}

	TransactionReader interface {
		ReadRows(ctx context.Context) ([]Row, error)
	}
)
