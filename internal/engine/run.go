package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapetl/internal/state"
	"github.com/leapstack-labs/leapetl/pkg/compiler"
)

// ExportError is one failed export of a run.
type ExportError struct {
	Index       int
	Kind        string
	Destination string
	Err         error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("exports[%d] (%s) to %s: %v", e.Index, e.Kind, e.Destination, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ExportResult is the outcome of one export.
type ExportResult struct {
	Export      compiler.Export
	Destination string
	Duration    time.Duration
	Err         error
}

// Result is the outcome of a run.
type Result struct {
	// RunID is empty when the ledger is disabled.
	RunID   string
	Plan    *compiler.Plan
	Exports []ExportResult
}

// Failed returns the number of failed exports.
func (r *Result) Failed() int {
	n := 0
	for _, x := range r.Exports {
		if x.Err != nil {
			n++
		}
	}
	return n
}

// Run compiles the document at path and writes all of its exports.
// Compile errors abort before any I/O, the ledger included. Export failures
// do not stop the remaining exports; they are returned together as
// ExportErrors.
func (e *Engine) Run(ctx context.Context, path string) (*Result, error) {
	e.logger.Info("starting run", "pipeline", path)

	plan, err := e.Compile(path)
	if err != nil {
		e.logger.Error("run failed during compilation", "error", err.Error())
		return nil, err
	}
	return e.RunPlan(ctx, plan)
}

// RunPlan writes all exports of an already compiled plan.
func (e *Engine) RunPlan(ctx context.Context, plan *compiler.Plan) (*Result, error) {
	runID, err := e.startRun(plan.Document)
	if err != nil {
		return nil, err
	}
	res, err := e.execute(ctx, runID, plan)
	e.completeRun(runID, err)
	return res, err
}

func (e *Engine) execute(ctx context.Context, runID string, plan *compiler.Plan) (*Result, error) {
	res := &Result{RunID: runID, Plan: plan}
	if len(plan.Exports) == 0 {
		e.logger.Info("no exports, plan compiled only", "run_id", runID)
		return res, nil
	}

	mat, err := e.ensureConnected(ctx)
	if err != nil {
		return res, err
	}

	// One timestamp for the whole run, so date-stamped exports agree.
	now := e.now()
	var errs []error
	for _, exp := range plan.Exports {
		dest := exp.Destination(now)
		log := e.logger.With(slog.String("run_id", runID), slog.Int("export", exp.Index),
			slog.String("kind", exp.Kind), slog.String("destination", dest))

		start := time.Now()
		err := ctx.Err()
		if err == nil {
			err = e.export(ctx, mat, plan, exp, dest)
		}
		elapsed := time.Since(start)

		out := ExportResult{Export: exp, Destination: dest, Duration: elapsed}
		if err != nil {
			out.Err = &ExportError{Index: exp.Index, Kind: exp.Kind, Destination: dest, Err: err}
			errs = append(errs, out.Err)
			log.Error("export failed", "error", err.Error(), "duration", elapsed)
		} else {
			log.Info("export written", "duration", elapsed)
		}
		res.Exports = append(res.Exports, out)
		e.recordExport(runID, out)
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}

func (e *Engine) export(ctx context.Context, mat Materializer, plan *compiler.Plan, exp compiler.Export, dest string) error {
	if !exp.Remote() {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("failed to create export folder: %w", err)
		}
	}
	switch exp.Kind {
	case "csv":
		return mat.SinkCSV(ctx, plan.Frame, dest, exp.CSV)
	case "json":
		return mat.SinkJSON(ctx, plan.Frame, dest)
	case "json_line":
		return mat.SinkNDJSON(ctx, plan.Frame, dest)
	case "parquet":
		return mat.SinkParquet(ctx, plan.Frame, dest)
	}
	return fmt.Errorf("unsupported export kind %q", exp.Kind)
}

// --- ledger ---

func (e *Engine) startRun(pipeline string) (string, error) {
	if e.store == nil {
		return "", nil
	}
	if abs, err := filepath.Abs(pipeline); err == nil {
		pipeline = abs
	}
	run, err := e.store.CreateRun(pipeline)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)
	return run.ID, nil
}

func (e *Engine) completeRun(runID string, runErr error) {
	if e.store == nil {
		return
	}
	status, msg := state.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = state.RunStatusFailed, runErr.Error()
	}
	if err := e.store.CompleteRun(runID, status, msg); err != nil {
		e.logger.Warn("failed to complete run", "run_id", runID, "error", err.Error())
	}
}

func (e *Engine) recordExport(runID string, out ExportResult) {
	if e.store == nil {
		return
	}
	rec := &state.ExportRun{
		RunID:       runID,
		Index:       out.Export.Index,
		Kind:        out.Export.Kind,
		Destination: out.Destination,
		Status:      state.ExportStatusSuccess,
		DurationMS:  out.Duration.Milliseconds(),
	}
	if out.Err != nil {
		rec.Status = state.ExportStatusFailed
		rec.Error = errors.Unwrap(out.Err).Error()
	}
	if err := e.store.RecordExport(rec); err != nil {
		e.logger.Warn("failed to record export", "run_id", runID, "error", err.Error())
	}
}
