package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "preview <pipeline.yaml>",
		Short: "Show the first rows of a pipeline's result",
		Long: `Compile a pipeline and materialize its first rows without writing
any export. The run is not recorded in the ledger.`,
		Example: `  leapetl preview pipelines/issues.yaml --limit 5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, args[0], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows to show (0 for all)")
	return cmd
}

func runPreview(cmd *cobra.Command, path string, limit int) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	plan, err := cc.Engine.Compile(path)
	if err != nil {
		return err
	}
	res, err := cc.Engine.Preview(cmd.Context(), plan, limit)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.JSON() {
		rows := make([]map[string]any, len(res.Rows))
		for i, row := range res.Rows {
			m := make(map[string]any, len(res.Columns))
			for j, col := range res.Columns {
				m[col] = row[j]
			}
			rows[i] = m
		}
		return r.Encode(rows)
	}

	if len(res.Rows) == 0 {
		r.Println("(0 rows)")
		return nil
	}
	r.Table(res.Columns, res.Rows)
	r.Println(r.Styles().Muted.Render(fmt.Sprintf("(%d rows)", len(res.Rows))))
	return nil
}
