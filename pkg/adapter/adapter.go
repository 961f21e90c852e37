// Package adapter defines the database connection contract used to execute
// compiled pipelines.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves with the registry in this package.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds adapter connection settings.
type Config struct {
	// Type selects the registered adapter, e.g. "duckdb".
	Type string
	// Path is the database file; empty or ":memory:" means in-memory.
	Path string
	// Params holds adapter-specific settings decoded by the adapter.
	Params map[string]any
}

// Rows wraps query results. Callers must close it and check Err after
// iteration.
type Rows struct {
	*sql.Rows
}

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// DialectName returns the SQL dialect spoken by the adapter.
	DialectName() string
}
