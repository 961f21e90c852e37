package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapetl/internal/state"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the run ledger",
		Example: `  # Last 10 runs
  leapetl history --limit 10

  # Exports of one run
  leapetl history --run 2f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID != "" {
				return runHistoryExports(cmd, runID)
			}
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the exports of a single run")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cc.Engine.Runs(limit)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.JSON() {
		return r.Encode(runs)
	}
	if len(runs) == 0 {
		r.Println("no runs recorded")
		return nil
	}

	rows := make([][]any, len(runs))
	for i, run := range runs {
		rows[i] = []any{run.ID, run.Pipeline, string(run.Status), run.StartedAt.Local().Format(time.DateTime), runDuration(run), run.Error}
	}
	r.Table([]string{"run", "pipeline", "status", "started", "duration", "error"}, rows)
	return nil
}

func runHistoryExports(cmd *cobra.Command, runID string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	exports, err := cc.Engine.ExportRuns(runID)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.JSON() {
		return r.Encode(exports)
	}

	rows := make([][]any, len(exports))
	for i, x := range exports {
		rows[i] = []any{x.Index, x.Kind, x.Destination, string(x.Status), (time.Duration(x.DurationMS) * time.Millisecond).String(), x.Error}
	}
	r.Table([]string{"export", "kind", "destination", "status", "duration", "error"}, rows)
	return nil
}

func runDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
