package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotConnected is returned by statements issued before Connect or after
// Close.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter implements Close, Exec and Query on top of database/sql.
// Adapters embed it and set DB from their Connect.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

func (b *BaseSQLAdapter) log() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// Close releases the connection. Closing twice is a no-op.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	b.log().Debug("closing database connection")
	db := b.DB
	b.DB = nil
	return db.Close()
}

// Exec runs a statement that returns no rows, such as SET or COPY.
func (b *BaseSQLAdapter) Exec(ctx context.Context, stmt string) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	b.log().Debug("executing statement", slog.String("sql", stmt))
	if _, err := b.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query runs a statement that returns rows. The caller closes the result and
// checks Err after iterating.
func (b *BaseSQLAdapter) Query(ctx context.Context, stmt string) (*Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	b.log().Debug("executing query", slog.String("sql", stmt))
	rows, err := b.DB.QueryContext(ctx, stmt) //nolint:rowserrcheck // checked by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// IsConnected reports whether Connect succeeded and Close has not run.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}
