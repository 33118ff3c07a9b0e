package backend

import (
	"context"

	"expensetracker/internal/amqp"
	"expensetracker/internal/ledger"
)

// Store is a ledger store that owns resources to release at shutdown.
type Store interface {
	ledger.Store
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the opened store, the optional broker client and a
// cleanup function that closes both.
type BackendResult struct {
	Store Store
	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string
	BoltDBPath   string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireAMQP turns a broker connection failure into an error instead
	// of a warning.
	RequireAMQP bool
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	BoltBackend     BackendType = "bolt"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, BoltBackend:
		return true
	default:
		return false
	}
}
