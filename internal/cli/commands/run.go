package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapetl/internal/cli/output"
	"github.com/leapstack-labs/leapetl/internal/engine"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Watch    bool
	Debounce time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Compile a pipeline and write its exports",
		Long: `Compile a pipeline document and write every export.

All exports are attempted even when one fails; failures are reported
together at the end. With --watch the pipeline is re-run whenever the
document or any document it imports changes.`,
		Example: `  # Run a pipeline once
  leapetl run pipelines/issues.yaml

  # Re-run on every change
  leapetl run pipelines/issues.yaml --watch

  # Machine-readable result
  leapetl run pipelines/issues.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when the pipeline or its imports change")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "Delay before re-running after a change")

	return cmd
}

func runRun(cmd *cobra.Command, path string, opts *RunOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if !opts.Watch {
		_, err := runOnce(cmd.Context(), cc, path)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var last *engine.Result
	rerun := func(ctx context.Context) []string {
		res, err := runOnce(ctx, cc, path)
		if err != nil {
			cc.Renderer.Error(err.Error())
		}
		last = res
		return watchedFiles(path, res)
	}
	onChange := func(ctx context.Context, changed []string) []string {
		if affected, ok := affectedDocuments(last, changed); ok {
			if len(affected) == 0 {
				return watchedFiles(path, last)
			}
			cc.Logger.Info("pipeline changed", "changed", changed, "affected", affected)
		}
		return rerun(ctx)
	}

	fw, err := newFileWatcher(cc.Logger, opts.Debounce, rerun(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	cc.Renderer.Println(cc.Renderer.Styles().Muted.Render("watching for changes, press Ctrl+C to stop"))
	return fw.loop(ctx, onChange)
}

// affectedDocuments returns the documents of the last compiled plan that
// changed or import a changed document. ok is false when there is no plan
// to compare against, in which case every change re-runs.
func affectedDocuments(last *engine.Result, changed []string) (affected []string, ok bool) {
	if last == nil || last.Plan == nil {
		return nil, false
	}
	graph, err := engine.ImportGraph(last.Plan)
	if err != nil {
		return nil, false
	}
	return graph.Affected(changed...), true
}

// watchedFiles lists the documents of the last run, or the root document
// alone when it did not compile.
func watchedFiles(path string, res *engine.Result) []string {
	if res != nil && res.Plan != nil && len(res.Plan.Files) > 0 {
		return res.Plan.Files
	}
	if abs, err := filepath.EvalSymlinks(path); err == nil {
		path = abs
	}
	if abs, err := filepath.Abs(path); err == nil {
		return []string{abs}
	}
	return []string{path}
}

// runOnce runs the pipeline and reports the outcome. Export failures are
// printed individually and summarized in the returned error.
func runOnce(ctx context.Context, cc *CommandContext, path string) (*engine.Result, error) {
	start := time.Now()
	res, err := cc.Engine.Run(ctx, path)
	if res == nil || res.Plan == nil || (err != nil && len(res.Exports) == 0) {
		return res, err
	}

	r := cc.Renderer
	if r.JSON() {
		if encErr := r.Encode(runReport(res, time.Since(start))); encErr != nil {
			return res, encErr
		}
	} else {
		reportText(r, res, time.Since(start))
	}

	if failed := res.Failed(); failed > 0 {
		return res, fmt.Errorf("%d of %d exports failed", failed, len(res.Exports))
	}
	return res, err
}

func reportText(r *output.Renderer, res *engine.Result, elapsed time.Duration) {
	styles := r.Styles()
	for _, x := range res.Exports {
		if x.Err != nil {
			r.Error(x.Err.Error())
			continue
		}
		r.Success(fmt.Sprintf("%s %s %s",
			x.Export.Kind,
			styles.Path.Render(x.Destination),
			styles.Muted.Render(x.Duration.Round(time.Millisecond).String())))
	}

	if len(res.Exports) == 0 {
		r.Warning("pipeline has no exports, compiled only")
	}
	summary := fmt.Sprintf("%d/%d exports written in %s", len(res.Exports)-res.Failed(), len(res.Exports), elapsed.Round(time.Millisecond))
	if res.RunID != "" {
		summary += " (run " + res.RunID + ")"
	}
	r.Println(styles.Muted.Render(summary))
}

type exportReport struct {
	Index       int    `json:"index"`
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

type runReportJSON struct {
	RunID    string         `json:"run_id,omitempty"`
	Pipeline string         `json:"pipeline"`
	Status   string         `json:"status"`
	TotalMS  int64          `json:"total_ms"`
	Exports  []exportReport `json:"exports"`
}

func runReport(res *engine.Result, elapsed time.Duration) runReportJSON {
	rep := runReportJSON{
		RunID:    res.RunID,
		Pipeline: res.Plan.Document,
		Status:   "completed",
		TotalMS:  elapsed.Milliseconds(),
		Exports:  make([]exportReport, 0, len(res.Exports)),
	}
	for _, x := range res.Exports {
		er := exportReport{
			Index:       x.Export.Index,
			Kind:        x.Export.Kind,
			Destination: x.Destination,
			Status:      "success",
			DurationMS:  x.Duration.Milliseconds(),
		}
		if x.Err != nil {
			er.Status = "failed"
			er.Error = x.Err.Error()
			var xe *engine.ExportError
			if errors.As(x.Err, &xe) {
				er.Error = xe.Err.Error()
			}
			rep.Status = "failed"
		}
		rep.Exports = append(rep.Exports, er)
	}
	return rep
}
