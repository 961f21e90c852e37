package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapetl/internal/engine"
	"github.com/leapstack-labs/leapetl/pkg/compiler"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <pipeline.yaml>",
		Short: "Show the compiled query, exports and imports",
		Long: `Compile a pipeline and print what a run would do: the final query
handed to the table engine, where each export would be written and the tree
of imported documents.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0])
		},
	}
}

type planJSON struct {
	Document     string     `json:"document"`
	SQL          string     `json:"sql"`
	Columns      []string   `json:"columns,omitempty"`
	Destinations []string   `json:"destinations"`
	Documents    []string   `json:"documents"`
	ImportCount  int        `json:"import_count"`
	Levels       [][]string `json:"import_levels"`
}

func runPlan(cmd *cobra.Command, path string) error {
	cc := NewCommandContextWithoutEngine(cmd)
	plan, err := cc.Compiler().CompileFile(path)
	if err != nil {
		return err
	}

	graph, err := engine.ImportGraph(plan)
	if err != nil {
		return err
	}
	levels, err := graph.Levels()
	if err != nil {
		return err
	}
	order, err := graph.TopologicalSort()
	if err != nil {
		return err
	}

	now := time.Now()
	dests := make([]string, len(plan.Exports))
	for i, exp := range plan.Exports {
		dests[i] = exp.Destination(now)
	}

	var columns []string
	if schema, ok := plan.Frame.Schema(); ok {
		for _, c := range schema {
			columns = append(columns, c.Name)
		}
	}

	r := cc.Renderer
	if r.JSON() {
		return r.Encode(planJSON{
			Document:     plan.Document,
			SQL:          plan.Frame.SQL(),
			Columns:      columns,
			Destinations: dests,
			Documents:    order,
			ImportCount:  graph.EdgeCount(),
			Levels:       levels,
		})
	}

	r.Header(1, "Query")
	r.Println(plan.Frame.SQL())
	r.Println("")

	if columns != nil {
		r.KeyValue("Columns", strings.Join(columns, ", "))
		r.Println("")
	}

	r.Header(1, "Exports")
	if len(plan.Exports) == 0 {
		r.Println(r.Styles().Muted.Render("none, the plan is compiled only"))
	}
	for i, exp := range plan.Exports {
		r.Printf("  [%d] %-9s %s\n", exp.Index, exp.Kind, r.Styles().Path.Render(dests[i]))
	}
	r.Println("")

	r.Header(1, "Imports")
	if len(graph.Upstream(plan.Document)) == 0 {
		r.Println(r.Styles().Muted.Render("none"))
		return nil
	}
	r.Printf("%s", graph.Tree(plan.Document, relativeTo(plan)))
	r.Println(r.Styles().Muted.Render(fmt.Sprintf("%d documents, %d imports", graph.NodeCount(), graph.EdgeCount())))
	return nil
}

// relativeTo labels documents relative to the root document's folder.
func relativeTo(plan *compiler.Plan) func(string) string {
	base := filepath.Dir(plan.Document)
	return func(p string) string {
		if rel, err := filepath.Rel(base, p); err == nil {
			return rel
		}
		return p
	}
}
