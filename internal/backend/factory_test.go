package backend

import (
	"context"
	"path/filepath"
	"testing"

	"finboard/internal/auth"
	"finboard/internal/config"
	"finboard/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	app := config.Defaults()
	app.DataBackend = "postgres"
	app.PostgresDSN = "postgres://localhost/finboard"

	cfg, err := FromAppConfig(&app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.PostgresDSN != app.PostgresDSN || cfg.DataDirectory != app.DataDir {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SettingsDefaults == nil || cfg.SettingsDefaults.SavingsGoalPercent != app.SavingsGoalPercent || cfg.SettingsDefaults.Locale != app.DefaultLocale {
		t.Errorf("settings defaults = %+v", cfg.SettingsDefaults)
	}

	app.DataBackend = "sheets"
	if _, err := FromAppConfig(&app); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without dsn", Config{Type: PostgresBackend}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x"}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if err := res.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	userCtx := auth.WithUser(ctx, auth.User{ID: "alice"})
	cats, err := res.Store.Categories.List(userCtx, nil)
	if err != nil || len(cats) == 0 {
		t.Errorf("expected default categories, got %v (err %v)", cats, err)
	}
}

func TestCreateBackendAppliesSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	defaults := core.DefaultSettings()
	defaults.Locale = "pt-BR"
	defaults.SavingsGoalPercent = 35

	for _, cfg := range []Config{
		{Type: MemoryBackend, DataDirectory: t.TempDir(), SettingsDefaults: &defaults},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "finboard.db"), SettingsDefaults: &defaults},
	} {
		t.Run(string(cfg.Type), func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer res.Close()

			got, err := res.Store.Settings.GetSettings(auth.WithUser(ctx, auth.User{ID: "alice"}))
			if err != nil {
				t.Fatalf("GetSettings: %v", err)
			}
			if got.Locale != "pt-BR" || got.SavingsGoalPercent != 35 {
				t.Errorf("settings = %+v, want configured defaults", got)
			}
		})
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "finboard.db")
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if err := res.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	userCtx := auth.WithUser(ctx, auth.User{ID: "alice"})
	if _, err := res.Store.Banks.Create(userCtx, core.Bank{Name: "Nubank"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	banks, _ := res.Store.Banks.List(userCtx, nil)
	if len(banks) != 1 {
		t.Errorf("banks = %+v, want 1", banks)
	}
}
