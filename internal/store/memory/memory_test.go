package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"finboard/internal/apperr"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/store"
)

func userCtx(id string) context.Context {
	return auth.WithUser(context.Background(), auth.User{ID: id})
}

func TestCollectionCRUD(t *testing.T) {
	s := New(nil, nil)
	ctx := userCtx("u1")

	created, err := s.Transactions.Create(ctx, core.Transaction{Type: core.KindExpense, Date: "2024-03-01", Amount: 12})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}

	created.Amount = 15
	if _, err := s.Transactions.Update(ctx, created.ID, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, err := s.Transactions.List(ctx, store.Filter{"month": "2024-03"})
	if err != nil || len(list) != 1 || list[0].Amount != 15 {
		t.Fatalf("unexpected list %v err=%v", list, err)
	}

	if err := s.Transactions.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Transactions.Delete(ctx, created.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCollectionRejectsInvalidAndAnonymous(t *testing.T) {
	s := New(nil, nil)

	if _, err := s.Banks.List(context.Background(), nil); !apperr.IsAuthRequired(err) {
		t.Fatalf("expected auth required, got %v", err)
	}
	_, err := s.Banks.Create(userCtx("u1"), core.Bank{})
	if apperr.Code(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := s.Banks.List(userCtx("u1"), store.Filter{"month": "x"}); apperr.Code(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected unsupported filter error, got %v", err)
	}
}

func TestUsersArePartitioned(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.Assets.Create(userCtx("a"), core.Asset{Name: "Savings", Value: 100}); err != nil {
		t.Fatal(err)
	}
	list, _ := s.Assets.List(userCtx("b"), nil)
	if len(list) != 0 {
		t.Fatalf("user b must not see user a records: %v", list)
	}
}

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	s := New(nil, nil)
	ctx := userCtx("u1")
	got, err := s.Settings.GetSettings(ctx)
	if err != nil || got.Currency != "EUR" {
		t.Fatalf("unexpected defaults %v %v", got, err)
	}
	if _, err := s.Settings.UpdateSettings(ctx, core.Settings{SavingsGoalPercent: 150}); apperr.Code(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected validation error, got %v", err)
	}
	upd, err := s.Settings.UpdateSettings(ctx, core.Settings{Currency: "USD", SavingsGoalPercent: 10})
	if err != nil || upd.HiddenCategoryIDs == nil {
		t.Fatalf("unexpected update %v %v", upd, err)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	cats, _ := s.Categories.List(userCtx("u1"), nil)
	if len(cats) != len(DefaultCategories()) {
		t.Fatalf("expected defaults when files missing, got %v", cats)
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_categories.txt", "# name|type|color|icon\nRent|expense|#ff0000|home\nPay|income\nRent|expense\n\n")
	mustWrite("currencies.txt", "EUR|Euro|€\nbroken\n")

	s = NewFromFiles(dir)
	cats, _ = s.Categories.List(userCtx("u1"), store.Filter{"type": "expense"})
	if len(cats) != 1 || cats[0].Name != "Rent" || cats[0].Icon != "home" || cats[0].ID == "" {
		t.Fatalf("unexpected seeded categories: %v", cats)
	}
	cur, _ := s.Reference.ListCurrencies(userCtx("u1"))
	if len(cur) != 1 || cur[0].Symbol != "€" {
		t.Fatalf("unexpected currencies: %v", cur)
	}
}
