package frame

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapetl/pkg/adapter"
)

// Executor runs SQL against the table engine. It is implemented by
// adapter.Adapter.
type Executor interface {
	Exec(ctx context.Context, sql string) error
	Query(ctx context.Context, sql string) (*adapter.Rows, error)
}

// Session materializes frames. A Session is safe for sequential use; each
// sink re-runs the full plan of the frame it is given.
type Session struct {
	exec   Executor
	logger *slog.Logger
}

// NewSession creates a session over exec. A nil logger discards output.
func NewSession(exec Executor, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{exec: exec, logger: logger}
}

// CSVWriteOptions configures SinkCSV.
type CSVWriteOptions struct {
	// Separator is the field delimiter; empty means ",".
	Separator string
	// Header writes column names as the first row.
	Header bool
}

// SinkCSV writes f to path as CSV.
func (s *Session) SinkCSV(ctx context.Context, f Frame, path string, opts CSVWriteOptions) error {
	sep := opts.Separator
	if sep == "" {
		sep = ","
	}
	options := fmt.Sprintf("FORMAT CSV, HEADER %t, DELIMITER %s", opts.Header, QuoteString(sep))
	return s.copy(ctx, "sink_csv", f, path, options)
}

// SinkJSON writes f to path as a JSON array of objects.
func (s *Session) SinkJSON(ctx context.Context, f Frame, path string) error {
	return s.copy(ctx, "sink_json", f, path, "FORMAT JSON, ARRAY true")
}

// SinkNDJSON writes f to path as newline-delimited JSON.
func (s *Session) SinkNDJSON(ctx context.Context, f Frame, path string) error {
	return s.copy(ctx, "sink_ndjson", f, path, "FORMAT JSON")
}

// SinkParquet writes f to path as parquet.
func (s *Session) SinkParquet(ctx context.Context, f Frame, path string) error {
	return s.copy(ctx, "sink_parquet", f, path, "FORMAT PARQUET")
}

// CopySQL renders the statement that writes f to path.
func CopySQL(f Frame, path, options string) string {
	return fmt.Sprintf("COPY (%s) TO %s (%s)", f.sql, QuoteString(path), options)
}

func (s *Session) copy(ctx context.Context, op string, f Frame, path, options string) error {
	s.logger.Debug("writing frame", slog.String("op", op), slog.String("path", path))
	if err := s.exec.Exec(ctx, CopySQL(f, path, options)); err != nil {
		return &EngineError{Op: op, Err: err}
	}
	return nil
}

// Result holds collected rows.
type Result struct {
	Columns []string
	Types   []string
	Rows    [][]any
}

// Collect executes f and returns at most limit rows; limit <= 0 returns all.
func (s *Session) Collect(ctx context.Context, f Frame, limit int) (*Result, error) {
	if limit > 0 {
		f = f.Limit(limit)
	}
	rows, err := s.exec.Query(ctx, f.sql)
	if err != nil {
		return nil, &EngineError{Op: "collect", Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &EngineError{Op: "collect", Err: err}
	}
	res := &Result{Columns: columns, Types: make([]string, len(columns))}
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			res.Types[i] = strings.ToLower(ct.DatabaseTypeName())
		}
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &EngineError{Op: "collect", Err: err}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &EngineError{Op: "collect", Err: err}
	}
	return res, nil
}
