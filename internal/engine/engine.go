// Package engine runs compiled pipelines.
// It owns the table engine connection, fans a plan out to its exports and
// records every run in the state ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/leapetl/internal/state"
	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapetl/pkg/compiler"
	"github.com/leapstack-labs/leapetl/pkg/frame"
)

// Materializer executes frames. *frame.Session implements it.
type Materializer interface {
	SinkCSV(ctx context.Context, f frame.Frame, path string, opts frame.CSVWriteOptions) error
	SinkJSON(ctx context.Context, f frame.Frame, path string) error
	SinkNDJSON(ctx context.Context, f frame.Frame, path string) error
	SinkParquet(ctx context.Context, f frame.Frame, path string) error
	Collect(ctx context.Context, f frame.Frame, limit int) (*frame.Result, error)
}

// Config holds engine configuration.
type Config struct {
	// Adapter configures the table engine connection. The type defaults to
	// duckdb.
	Adapter adapter.Config
	// StatePath is the path to the SQLite run ledger. Empty disables it.
	StatePath string
	// Resolver expands source paths (optional, uses compiler.GlobResolver if nil)
	Resolver compiler.Resolver
	// Materializer replaces the adapter-backed session (optional)
	Materializer Materializer
	// Now stamps export file names (optional, uses time.Now if nil)
	Now func() time.Time
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine compiles and runs pipeline documents.
type Engine struct {
	// Table engine connection (lazy initialized)
	db       adapter.Adapter
	dbConfig adapter.Config
	dbMu     sync.Mutex
	mat      Materializer

	logger   *slog.Logger
	store    state.Store
	compiler *compiler.Compiler
	now      func() time.Time
}

// New creates a new engine with a lazy table engine connection.
// The connection is only opened when a plan is materialized.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dbConfig := cfg.Adapter
	if dbConfig.Type == "" {
		dbConfig.Type = duckdb.Name
	}
	if !adapter.IsRegistered(dbConfig.Type) {
		return nil, &adapter.UnknownAdapterError{Type: dbConfig.Type, Available: adapter.ListAdapters()}
	}

	logger.Debug("initializing engine", "engine", dbConfig.Type, "state_path", cfg.StatePath)

	var store state.Store
	if cfg.StatePath != "" {
		s := state.NewSQLiteStore(logger)
		if err := s.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		store = s
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		dbConfig: dbConfig,
		mat:      cfg.Materializer,
		logger:   logger,
		store:    store,
		compiler: compiler.New(compiler.Options{Resolver: cfg.Resolver, Logger: logger}),
		now:      now,
	}, nil
}

// ensureConnected lazily connects to the table engine.
func (e *Engine) ensureConnected(ctx context.Context) (Materializer, error) {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.mat != nil {
		return e.mat, nil
	}

	e.logger.Debug("connecting to table engine", "adapter_type", e.dbConfig.Type)

	db, err := adapter.NewAdapter(e.dbConfig, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine adapter: %w", err)
	}
	if err := db.Connect(ctx, e.dbConfig); err != nil {
		return nil, fmt.Errorf("failed to connect to table engine: %w", err)
	}

	e.db = db
	e.mat = frame.NewSession(db, e.logger)

	e.logger.Debug("table engine connected", "dialect", db.DialectName())
	return e.mat, nil
}

// Compile parses and compiles the document at path without touching data.
func (e *Engine) Compile(path string) (*compiler.Plan, error) {
	return e.compiler.CompileFile(path)
}

// Preview materializes at most limit rows of plan.
func (e *Engine) Preview(ctx context.Context, plan *compiler.Plan, limit int) (*frame.Result, error) {
	mat, err := e.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return mat.Collect(ctx, plan.Frame, limit)
}

// ErrNoLedger is returned by history queries when the ledger is disabled.
var ErrNoLedger = errors.New("run ledger disabled (state_path is empty)")

// Runs returns the most recent runs, newest first.
func (e *Engine) Runs(limit int) ([]*state.Run, error) {
	if e.store == nil {
		return nil, ErrNoLedger
	}
	return e.store.ListRuns(limit)
}

// ExportRuns returns the exports recorded for a run.
func (e *Engine) ExportRuns(runID string) ([]*state.ExportRun, error) {
	if e.store == nil {
		return nil, ErrNoLedger
	}
	return e.store.GetExportRuns(runID)
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}
