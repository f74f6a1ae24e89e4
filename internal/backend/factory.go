package backend

import (
	"context"
	"errors"
	"fmt"

	"cospese/internal/amqp"
	applog "cospese/internal/log"
	"cospese/internal/services"
	"cospese/internal/storage"
	"cospese/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend opens the store, seeds the user directory and, when a broker
// URL is set, connects the event publisher. A broker that cannot be reached
// is logged and skipped; the export poller covers for missing events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	res := &Result{Store: store}
	var client *amqp.Client
	if config.AMQPURL != "" {
		client, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, services.EventExpenseApproved)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
			client = nil
		} else {
			res.Events = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		if client != nil {
			errs = append(errs, client.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (Store, error) {
	seeds, err := storage.ReadSeedFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	var store Store
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
	case MemoryBackend:
		store = memory.New()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if err := store.SeedUsers(ctx, seeds); err != nil {
		store.Close()
		return nil, fmt.Errorf("seed users: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		"users", len(seeds),
		"seed_file", config.SeedFile)
	return store, nil
}
