// Package backend assembles the record store and event publisher selected
// by configuration.
package backend

import (
	"context"

	"cospese/internal/services"
	"cospese/internal/storage"
)

// Store is the full record store contract shared by the SQLite and memory
// implementations.
type Store interface {
	services.ExpenseStore
	services.ExportQueue
	services.UserDirectory
	SeedUsers(ctx context.Context, seeds []storage.SeedUser) error
	Ping(ctx context.Context) error
	Close() error
}

// CleanupFunc releases the resources opened by the factory.
type CleanupFunc func() error

// Result contains the assembled backend. Events is nil when no broker is
// configured.
type Result struct {
	Store   Store
	Events  services.EventPublisher
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	SeedFile     string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
