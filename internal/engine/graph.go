package engine

import (
	"github.com/leapstack-labs/leapetl/internal/dag"
	"github.com/leapstack-labs/leapetl/pkg/compiler"
)

// ImportGraph builds the graph of documents read while compiling plan.
func ImportGraph(plan *compiler.Plan) (*dag.Graph, error) {
	g := dag.NewGraph()
	for _, f := range plan.Files {
		g.AddDocument(f)
	}
	for _, imp := range plan.Imports {
		if err := g.AddImport(imp.From, imp.To); err != nil {
			return nil, err
		}
	}
	return g, nil
}
