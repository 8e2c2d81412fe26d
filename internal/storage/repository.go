// Package storage is the SQL record store, backed by SQLite (modernc) or Postgres (pgx).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"finboard/internal/apperr"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/store"
)

// Repository owns the connection pool and exposes one Table per record type.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger

	Transactions *Table[core.Transaction]
	Assets       *Table[core.Asset]
	Banks        *Table[core.Bank]
	Cards        *Table[core.Card]
	Categories   *Table[core.Category]
	Budgets      *Table[core.Budget]

	// SettingsDefaults is served to users who never saved settings.
	SettingsDefaults core.Settings
}

// NewSQLiteRepository opens (and migrates) a SQLite database file.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(context.Background(), SQLite, dbPath, logger)
}

// NewPostgresRepository opens (and migrates) a Postgres database.
func NewPostgresRepository(ctx context.Context, dsn string, logger *log.Logger) (*Repository, error) {
	return Open(ctx, Postgres, dsn, logger)
}

func Open(ctx context.Context, d Dialect, dsn string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r := &Repository{db: db, dialect: d, logger: logger.WithComponent(log.ComponentStorage), SettingsDefaults: core.DefaultSettings()}
	r.Transactions = newTable(r, store.TransactionSchema)
	r.Assets = newTable(r, store.AssetSchema)
	r.Banks = newTable(r, store.BankSchema)
	r.Cards = newTable(r, store.CardSchema)
	r.Categories = newTable(r, store.CategorySchema)
	r.Budgets = newTable(r, store.BudgetSchema)
	return r, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports database reachability for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordStore adapts the repository to the port bundle.
func (r *Repository) RecordStore() store.RecordStore {
	return store.RecordStore{
		Transactions: r.Transactions,
		Assets:       r.Assets,
		Banks:        r.Banks,
		Cards:        r.Cards,
		Categories:   r.Categories,
		Budgets:      r.Budgets,
		Settings:     r,
		Reference:    r,
	}
}

// Table stores records of one type as JSON payloads next to their indexed fields.
type Table[T store.Record] struct {
	repo    *Repository
	schema  store.Schema[T]
	columns []string
}

func newTable[T store.Record](r *Repository, schema store.Schema[T]) *Table[T] {
	return &Table[T]{repo: r, schema: schema, columns: schema.FieldNames()}
}

func (t *Table[T]) q(query string) string { return t.repo.dialect.Rebind(query) }

func (t *Table[T]) List(ctx context.Context, f store.Filter) ([]T, error) {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.schema.CheckFilter(f); err != nil {
		return nil, err
	}

	where := []string{"user_id = ?"}
	args := []any{u.ID}
	for _, col := range t.columns {
		if v := f[col]; v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	query := fmt.Sprintf("SELECT payload FROM %s WHERE %s ORDER BY seq", t.schema.Name, strings.Join(where, " AND "))

	rows, err := t.repo.db.QueryContext(ctx, t.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.schema.Name, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.schema.Name, err)
		}
		var rec T
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			t.repo.logger.WarnContext(ctx, "Skipping unreadable row", log.FieldResource, t.schema.Name, log.FieldError, err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *Table[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return zero, err
	}
	if err := t.schema.Validate(rec); err != nil {
		return zero, apperr.Invalid(err)
	}
	rec = t.schema.WithID(rec, uuid.NewString())

	payload, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", t.schema.Name, err)
	}

	cols := append([]string{"id", "user_id", "payload"}, t.columns...)
	args := []any{rec.RecordID(), u.ID, string(payload)}
	for _, col := range t.columns {
		args = append(args, t.schema.Fields[col](rec))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.schema.Name, strings.Join(cols, ", "), placeholders)

	if _, err := t.repo.db.ExecContext(ctx, t.q(query), args...); err != nil {
		return zero, fmt.Errorf("insert %s: %w", t.schema.Name, err)
	}
	t.repo.logger.DebugContext(ctx, "Record created", log.FieldResource, t.schema.Name, log.FieldRecordID, rec.RecordID())
	return rec, nil
}

func (t *Table[T]) Update(ctx context.Context, id string, rec T) (T, error) {
	var zero T
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return zero, err
	}
	if err := t.schema.Validate(rec); err != nil {
		return zero, apperr.Invalid(err)
	}
	rec = t.schema.WithID(rec, id)

	payload, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", t.schema.Name, err)
	}

	sets := []string{"payload = ?"}
	args := []any{string(payload)}
	for _, col := range t.columns {
		sets = append(sets, col+" = ?")
		args = append(args, t.schema.Fields[col](rec))
	}
	args = append(args, id, u.ID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND user_id = ?", t.schema.Name, strings.Join(sets, ", "))

	res, err := t.repo.db.ExecContext(ctx, t.q(query), args...)
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", t.schema.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return zero, fmt.Errorf("%s %s: %w", t.schema.Name, id, apperr.ErrNotFound)
	}
	return rec, nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND user_id = ?", t.schema.Name)
	res, err := t.repo.db.ExecContext(ctx, t.q(query), id, u.ID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.schema.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", t.schema.Name, id, apperr.ErrNotFound)
	}
	return nil
}

// GetSettings implements store.SettingsStore. Users without a row get the defaults.
func (r *Repository) GetSettings(ctx context.Context) (core.Settings, error) {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	var payload string
	err = r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT payload FROM settings WHERE user_id = ?"), u.ID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		d := r.SettingsDefaults
		d.HiddenCategoryIDs = append([]string{}, d.HiddenCategoryIDs...)
		return d, nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	var s core.Settings
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return core.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

func (r *Repository) UpdateSettings(ctx context.Context, s core.Settings) (core.Settings, error) {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return core.Settings{}, apperr.Invalid(err)
	}
	if s.HiddenCategoryIDs == nil {
		s.HiddenCategoryIDs = []string{}
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return core.Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	query := "INSERT INTO settings (user_id, payload) VALUES (?, ?) ON CONFLICT (user_id) DO UPDATE SET payload = excluded.payload"
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), u.ID, string(payload)); err != nil {
		return core.Settings{}, fmt.Errorf("upsert settings: %w", err)
	}
	return s, nil
}

// ListCurrencies implements store.ReferenceStore.
func (r *Repository) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	if _, err := auth.CurrentUser(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, "SELECT code, name, symbol FROM currencies ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []core.Currency
	for rows.Next() {
		var c core.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
