package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapetl/internal/state"
	"github.com/leapstack-labs/leapetl/internal/testutil"
	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/compiler"
	"github.com/leapstack-labs/leapetl/pkg/frame"
	"github.com/leapstack-labs/leapetl/pkg/pipeline"
)

// fakeMaterializer records sink calls and fails for destinations listed in
// fail.
type fakeMaterializer struct {
	calls []string
	fail  map[string]error
}

func (m *fakeMaterializer) sink(kind, path string) error {
	m.calls = append(m.calls, kind+" "+filepath.Base(path))
	return m.fail[filepath.Base(path)]
}

func (m *fakeMaterializer) SinkCSV(_ context.Context, _ frame.Frame, path string, _ frame.CSVWriteOptions) error {
	return m.sink("csv", path)
}

func (m *fakeMaterializer) SinkJSON(_ context.Context, _ frame.Frame, path string) error {
	return m.sink("json", path)
}

func (m *fakeMaterializer) SinkNDJSON(_ context.Context, _ frame.Frame, path string) error {
	return m.sink("ndjson", path)
}

func (m *fakeMaterializer) SinkParquet(_ context.Context, _ frame.Frame, path string) error {
	return m.sink("parquet", path)
}

func (m *fakeMaterializer) Collect(_ context.Context, _ frame.Frame, _ int) (*frame.Result, error) {
	return &frame.Result{Columns: []string{"x"}}, nil
}

var fixedNow = func() time.Time { return time.Date(2024, 5, 17, 8, 0, 0, 0, time.UTC) }

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	if cfg.Now == nil {
		cfg.Now = fixedNow
	}
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

const inlineSource = `
source:
  inline:
    columns:
      - {name: id, datatype: Int64, values: [1, 2]}
`

func TestNew_UnknownAdapter(t *testing.T) {
	_, err := New(Config{Adapter: adapter.Config{Type: "oracle"}})
	var uerr *adapter.UnknownAdapterError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "oracle", uerr.Type)
	assert.Contains(t, uerr.Available, "duckdb")
}

func TestRun_AllExportsAttempted(t *testing.T) {
	mat := &fakeMaterializer{fail: map[string]error{
		"b.json":  errors.New("disk full"),
		"d.jsonl": errors.New("permission denied"),
	}}
	statePath := filepath.Join(t.TempDir(), "state.db")
	e := newTestEngine(t, Config{Materializer: mat, StatePath: statePath})

	doc := writeDoc(t, inlineSource+`
exports:
  - csv: {folder: out, name: a, date_format: "_%Y%m%d"}
  - json: {folder: out, name: b}
  - parquet: {folder: out, name: c}
  - json_line: {folder: out, name: d}
`)
	res, err := e.Run(context.Background(), doc)
	require.Error(t, err)

	assert.Equal(t, []string{"csv a_20240517.csv", "json b.json", "parquet c.parquet", "ndjson d.jsonl"}, mat.calls)
	assert.Equal(t, 2, res.Failed())

	var exportErrs []*ExportError
	for _, x := range res.Exports {
		var xe *ExportError
		if errors.As(x.Err, &xe) {
			exportErrs = append(exportErrs, xe)
		}
	}
	require.Len(t, exportErrs, 2)
	assert.Equal(t, 1, exportErrs[0].Index)
	assert.Equal(t, "json_line", exportErrs[1].Kind)
	assert.Contains(t, err.Error(), "exports[1] (json) to ")
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "permission denied")
	assert.DirExists(t, filepath.Join(filepath.Dir(doc), "out"))

	run, err := e.store.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Equal(t, doc, run.Pipeline)

	recs, err := e.ExportRuns(res.RunID)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, state.ExportStatusSuccess, recs[0].Status)
	assert.Equal(t, state.ExportStatusFailed, recs[1].Status)
	assert.Equal(t, "disk full", recs[1].Error)
	assert.True(t, strings.HasSuffix(recs[0].Destination, "a_20240517.csv"))
}

func TestRun_NoExports(t *testing.T) {
	e := newTestEngine(t, Config{StatePath: ":memory:"})

	res, err := e.Run(context.Background(), writeDoc(t, inlineSource))
	require.NoError(t, err)
	assert.Empty(t, res.Exports)
	assert.Nil(t, e.db, "no exports, no connection")

	runs, err := e.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunStatusCompleted, runs[0].Status)
}

func TestRun_CompileErrorNotRecorded(t *testing.T) {
	mat := &fakeMaterializer{}
	e := newTestEngine(t, Config{Materializer: mat, StatePath: ":memory:"})

	doc := writeDoc(t, inlineSource+`
transforms:
  - select: [missing]
exports:
  - csv: {folder: out, name: a}
`)
	res, err := e.Run(context.Background(), doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, compiler.ErrUnknownColumn)
	assert.Nil(t, res)
	assert.Empty(t, mat.calls, "compile errors abort before any export")

	runs, err := e.Runs(1)
	require.NoError(t, err)
	assert.Empty(t, runs, "compile errors leave no run in the ledger")
}

func TestRun_ParseError(t *testing.T) {
	e := newTestEngine(t, Config{Materializer: &fakeMaterializer{}})

	_, err := e.Run(context.Background(), writeDoc(t, "source: {csv: {path: a.csv, bogus: 1}}\n"))
	assert.ErrorIs(t, err, pipeline.ErrParse)
}

func TestRun_Cancelled(t *testing.T) {
	mat := &fakeMaterializer{}
	e := newTestEngine(t, Config{Materializer: mat})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Run(ctx, writeDoc(t, inlineSource+"exports:\n  - csv: {folder: out, name: a}\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mat.calls)
	assert.Equal(t, 1, res.Failed())
}

func TestLedgerDisabled(t *testing.T) {
	e := newTestEngine(t, Config{Materializer: &fakeMaterializer{}})

	res, err := e.Run(context.Background(), writeDoc(t, inlineSource+"exports:\n  - csv: {folder: out, name: a}\n"))
	require.NoError(t, err)
	assert.Empty(t, res.RunID)

	_, err = e.Runs(5)
	assert.ErrorIs(t, err, ErrNoLedger)
}

func TestImportGraph(t *testing.T) {
	plan := &compiler.Plan{
		Files: []string{"/p/root.yaml", "/p/a.yaml", "/p/b.yaml"},
		Imports: []compiler.Import{
			{From: "/p/root.yaml", To: "/p/a.yaml"},
			{From: "/p/a.yaml", To: "/p/b.yaml"},
		},
	}
	g, err := ImportGraph(plan)
	require.NoError(t, err)

	levels, err := g.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"/p/b.yaml"}, {"/p/a.yaml"}, {"/p/root.yaml"}}, levels)
}
