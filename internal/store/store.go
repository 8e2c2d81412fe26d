// Package store defines the record-store ports consumed by the resource layer.
//
// Every call is scoped to the user carried by the context (see auth.WithUser);
// a call without a user fails with apperr.ErrAuthRequired.
package store

import (
	"context"
	"fmt"

	"finboard/internal/apperr"
	"finboard/internal/core"
)

// Resource names. They double as cache prefixes and HTTP path segments.
const (
	ResourceTransactions = "transactions"
	ResourceAssets       = "assets"
	ResourceBanks        = "banks"
	ResourceCards        = "cards"
	ResourceCategories   = "categories"
	ResourceBudgets      = "budgets"
	ResourceSettings     = "settings"
	ResourceReference    = "reference"
	ResourceDashboard    = "dashboard"
)

// Filter narrows a list call. Keys must be declared by the collection's Schema.
type Filter map[string]string

// Record is anything stored in a Collection.
type Record interface {
	RecordID() string
}

type (
	Collection[T Record] interface {
		List(ctx context.Context, f Filter) ([]T, error)
		Create(ctx context.Context, rec T) (T, error)
		Update(ctx context.Context, id string, rec T) (T, error)
		Delete(ctx context.Context, id string) error
	}

	SettingsStore interface {
		GetSettings(ctx context.Context) (core.Settings, error)
		UpdateSettings(ctx context.Context, s core.Settings) (core.Settings, error)
	}

	ReferenceStore interface {
		ListCurrencies(ctx context.Context) ([]core.Currency, error)
	}
)

// RecordStore bundles every port a session needs.
type RecordStore struct {
	Transactions Collection[core.Transaction]
	Assets       Collection[core.Asset]
	Banks        Collection[core.Bank]
	Cards        Collection[core.Card]
	Categories   Collection[core.Category]
	Budgets      Collection[core.Budget]
	Settings     SettingsStore
	Reference    ReferenceStore
}

// Schema describes how a record type is identified, validated and filtered.
type Schema[T Record] struct {
	Name string
	// Fields maps filter keys to the record value they compare against.
	// Storage backends index exactly these fields.
	Fields   map[string]func(T) string
	WithID   func(T, string) T
	Validate func(T) error
}

// Match reports whether rec satisfies every filter entry. Empty values match anything.
func (s Schema[T]) Match(rec T, f Filter) bool {
	for k, want := range f {
		if want == "" {
			continue
		}
		get, ok := s.Fields[k]
		if !ok || get(rec) != want {
			return false
		}
	}
	return true
}

// CheckFilter rejects filter keys the schema does not index.
func (s Schema[T]) CheckFilter(f Filter) error {
	for k := range f {
		if _, ok := s.Fields[k]; !ok {
			return apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("unsupported %s filter %q", s.Name, k))
		}
	}
	return nil
}

// FieldNames returns the indexed field names in a stable order.
func (s Schema[T]) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		names = append(names, k)
	}
	sortStrings(names)
	return names
}
