// Package memory is an in-process record store. Data lives for the lifetime of the process.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"finboard/internal/apperr"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/store"
)

// Collection is a user-partitioned, insertion-ordered table.
type Collection[T store.Record] struct {
	mu     sync.Mutex
	schema store.Schema[T]
	rows   map[string][]T
	seed   func() []T
}

func NewCollection[T store.Record](schema store.Schema[T]) *Collection[T] {
	return &Collection[T]{schema: schema, rows: make(map[string][]T)}
}

// userRows returns the rows of the current user, seeding them on first access. Caller holds mu.
func (c *Collection[T]) userRows(userID string) []T {
	rows, ok := c.rows[userID]
	if !ok && c.seed != nil {
		for _, rec := range c.seed() {
			rows = append(rows, c.schema.WithID(rec, uuid.NewString()))
		}
		c.rows[userID] = rows
	}
	return rows
}

func (c *Collection[T]) List(ctx context.Context, f store.Filter) ([]T, error) {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.schema.CheckFilter(f); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, 0)
	for _, rec := range c.userRows(u.ID) {
		if c.schema.Match(rec, f) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (c *Collection[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return zero, err
	}
	if err := c.schema.Validate(rec); err != nil {
		return zero, apperr.Invalid(err)
	}
	rec = c.schema.WithID(rec, uuid.NewString())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[u.ID] = append(c.userRows(u.ID), rec)
	return rec, nil
}

func (c *Collection[T]) Update(ctx context.Context, id string, rec T) (T, error) {
	var zero T
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return zero, err
	}
	if err := c.schema.Validate(rec); err != nil {
		return zero, apperr.Invalid(err)
	}
	rec = c.schema.WithID(rec, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.userRows(u.ID)
	for i := range rows {
		if rows[i].RecordID() == id {
			rows[i] = rec
			return rec, nil
		}
	}
	return zero, fmt.Errorf("%s %s: %w", c.schema.Name, id, apperr.ErrNotFound)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.userRows(u.ID)
	for i := range rows {
		if rows[i].RecordID() == id {
			c.rows[u.ID] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s %s: %w", c.schema.Name, id, apperr.ErrNotFound)
}

// Settings keeps one Settings value per user.
type Settings struct {
	// Defaults is served to users who never saved settings. Set it before first use.
	Defaults core.Settings

	mu       sync.Mutex
	settings map[string]core.Settings
}

func (s *Settings) GetSettings(ctx context.Context) (core.Settings, error) {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.settings[u.ID]; ok {
		return v, nil
	}
	d := s.Defaults
	d.HiddenCategoryIDs = append([]string{}, d.HiddenCategoryIDs...)
	return d, nil
}

func (s *Settings) UpdateSettings(ctx context.Context, v core.Settings) (core.Settings, error) {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	if err := v.Validate(); err != nil {
		return core.Settings{}, apperr.Invalid(err)
	}
	if v.HiddenCategoryIDs == nil {
		v.HiddenCategoryIDs = []string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[u.ID] = v
	return v, nil
}

// Reference serves the static currency list.
type Reference struct {
	currencies []core.Currency
}

func (r *Reference) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	if _, err := auth.CurrentUser(ctx); err != nil {
		return nil, err
	}
	return append([]core.Currency(nil), r.currencies...), nil
}

// Store exposes every collection of the memory backend.
type Store struct {
	Transactions *Collection[core.Transaction]
	Assets       *Collection[core.Asset]
	Banks        *Collection[core.Bank]
	Cards        *Collection[core.Card]
	Categories   *Collection[core.Category]
	Budgets      *Collection[core.Budget]
	Settings     *Settings
	Reference    *Reference
}

// New creates an empty store. Every user starts with the given categories.
func New(categories []core.Category, currencies []core.Currency) *Store {
	s := &Store{
		Transactions: NewCollection(store.TransactionSchema),
		Assets:       NewCollection(store.AssetSchema),
		Banks:        NewCollection(store.BankSchema),
		Cards:        NewCollection(store.CardSchema),
		Categories:   NewCollection(store.CategorySchema),
		Budgets:      NewCollection(store.BudgetSchema),
		Settings:     &Settings{Defaults: core.DefaultSettings(), settings: make(map[string]core.Settings)},
		Reference:    &Reference{currencies: currencies},
	}
	seed := append([]core.Category(nil), categories...)
	s.Categories.seed = func() []core.Category { return seed }
	return s
}

// NewFromFiles seeds categories and currencies from base, falling back to built-in defaults.
//
// seed_categories.txt lines are "name|type|color|icon"; currencies.txt lines are "code|name|symbol".
// Blank lines and lines starting with # are skipped.
func NewFromFiles(base string) *Store {
	var cats []core.Category
	for _, fields := range readRecords(filepath.Join(base, "seed_categories.txt")) {
		c := core.Category{Name: fields[0], Type: core.KindExpense}
		if len(fields) > 1 && core.Kind(fields[1]).Valid() {
			c.Type = core.Kind(fields[1])
		}
		if len(fields) > 2 {
			c.Color = fields[2]
		}
		if len(fields) > 3 {
			c.Icon = fields[3]
		}
		cats = append(cats, c)
	}
	if len(cats) == 0 {
		cats = DefaultCategories()
	}

	var currencies []core.Currency
	for _, fields := range readRecords(filepath.Join(base, "currencies.txt")) {
		if len(fields) < 3 {
			continue
		}
		currencies = append(currencies, core.Currency{Code: fields[0], Name: fields[1], Symbol: fields[2]})
	}
	if len(currencies) == 0 {
		currencies = DefaultCurrencies()
	}
	return New(cats, currencies)
}

// RecordStore adapts the store to the port bundle.
func (s *Store) RecordStore() store.RecordStore {
	return store.RecordStore{
		Transactions: s.Transactions,
		Assets:       s.Assets,
		Banks:        s.Banks,
		Cards:        s.Cards,
		Categories:   s.Categories,
		Budgets:      s.Budgets,
		Settings:     s.Settings,
		Reference:    s.Reference,
	}
}

func DefaultCategories() []core.Category {
	return []core.Category{
		{Name: "Salary", Type: core.KindIncome},
		{Name: "Housing", Type: core.KindExpense},
		{Name: "Groceries", Type: core.KindExpense},
		{Name: "Transport", Type: core.KindExpense},
		{Name: "ETF", Type: core.KindInvestment},
	}
}

func DefaultCurrencies() []core.Currency {
	return []core.Currency{
		{Code: "EUR", Name: "Euro", Symbol: "€"},
		{Code: "USD", Name: "US Dollar", Symbol: "$"},
		{Code: "GBP", Name: "Pound Sterling", Symbol: "£"},
		{Code: "BRL", Name: "Brazilian Real", Symbol: "R$"},
	}
}

// readRecords returns the pipe-separated fields of each meaningful line, deduplicated on the first field.
func readRecords(path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	seen := map[string]struct{}{}
	var out [][]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if fields[0] == "" {
			continue
		}
		if _, ok := seen[fields[0]]; ok {
			continue
		}
		seen[fields[0]] = struct{}{}
		out = append(out, fields)
	}
	return out
}
