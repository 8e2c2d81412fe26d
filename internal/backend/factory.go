package backend

import (
	"context"
	"errors"
	"fmt"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/storage"
	"finboard/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend.
// With an AMQP URL every mutation also publishes a change message; a broker that
// cannot be reached only disables publishing.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLBackend(ctx, storage.SQLite, config.SQLiteDBPath, config.SettingsDefaults)
	case PostgresBackend:
		res, err = f.createSQLBackend(ctx, storage.Postgres, config.PostgresDSN, config.SettingsDefaults)
	case MemoryBackend:
		res = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	// Initialize AMQP client (optional)
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, "", f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Store = services.Publishing(res.Store, amqpClient, f.logger)
			storeCleanup := res.Cleanup
			res.Cleanup = func() error {
				return errors.Join(amqpClient.Close(), runCleanup(storeCleanup))
			}
		}
	}

	return res, nil
}

func runCleanup(c CleanupFunc) error {
	if c == nil {
		return nil
	}
	return c()
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, d storage.Dialect, dsn string, defaults *core.Settings) (*BackendResult, error) {
	var (
		repo *storage.Repository
		err  error
	)
	if d == storage.SQLite {
		repo, err = storage.NewSQLiteRepository(dsn, f.logger)
	} else {
		repo, err = storage.NewPostgresRepository(ctx, dsn, f.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", d, err)
	}
	if defaults != nil {
		repo.SettingsDefaults = *defaults
	}

	f.logger.InfoContext(ctx, "Initialized SQL backend", "dialect", string(d))

	return &BackendResult{
		Store:   repo.RecordStore(),
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *BackendResult {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	mem := memory.NewFromFiles(dataDir)
	if config.SettingsDefaults != nil {
		mem.Settings.Defaults = *config.SettingsDefaults
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Store: mem.RecordStore(),
		Ping:  func(context.Context) error { return nil },
	}
}
