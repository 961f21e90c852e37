package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <pipeline.yaml>...",
		Short: "Parse and compile pipelines without reading data",
		Long: `Parse and compile one or more pipeline documents.

Source paths are resolved and every transform is type checked, but no data
is read and no export is written. Documents are checked concurrently.`,
		Example: `  leapetl check pipelines/*.yaml`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args)
		},
	}
}

type checkResult struct {
	Path    string `json:"path"`
	OK      bool   `json:"ok"`
	Exports int    `json:"exports"`
	Error   string `json:"error,omitempty"`
}

func runCheck(cmd *cobra.Command, paths []string) error {
	cc := NewCommandContextWithoutEngine(cmd)
	results := checkAll(cmd.Context(), cc, paths)

	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
	}

	r := cc.Renderer
	if r.JSON() {
		if err := r.Encode(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.OK {
				r.Success(fmt.Sprintf("%s %s", r.Styles().Path.Render(res.Path), r.Styles().Muted.Render(fmt.Sprintf("(%d exports)", res.Exports))))
			} else {
				r.Error(res.Error)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to compile", failed, len(paths))
	}
	return nil
}

// checkAll compiles every path concurrently. Results keep argument order.
func checkAll(ctx context.Context, cc *CommandContext, paths []string) []checkResult {
	results := make([]checkResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, p := range paths {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = checkResult{Path: p, Error: ctx.Err().Error()}
				return nil
			}
			// Each compile has its own state; only the logger is shared.
			plan, err := cc.Compiler().CompileFile(p)
			if err != nil {
				results[i] = checkResult{Path: p, Error: err.Error()}
				return nil
			}
			results[i] = checkResult{Path: p, OK: true, Exports: len(plan.Exports)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
