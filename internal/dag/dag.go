// Package dag holds the import graph of pipeline documents.
//
// A node is a document path. An edge runs from an imported document to the
// document importing it, so dependencies come before dependents in every
// ordering the graph returns.
package dag

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// CycleError reports an import cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "import cycle: " + strings.Join(e.Path, " -> ")
}

// Graph is a directed graph of documents.
type Graph struct {
	nodes map[string]bool
	// dependents maps a document to the documents importing it.
	dependents map[string][]string
	// imports maps a document to the documents it imports.
	imports map[string][]string
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]bool),
		dependents: make(map[string][]string),
		imports:    make(map[string][]string),
	}
}

// AddDocument adds a node. Adding an existing node is a no-op.
func (g *Graph) AddDocument(id string) {
	g.nodes[id] = true
}

// AddImport records that doc imports dep. Both nodes are added as needed.
func (g *Graph) AddImport(doc, dep string) error {
	if doc == dep {
		return &CycleError{Path: []string{doc, doc}}
	}
	g.AddDocument(doc)
	g.AddDocument(dep)
	if !slices.Contains(g.imports[doc], dep) {
		g.imports[doc] = append(g.imports[doc], dep)
	}
	if !slices.Contains(g.dependents[dep], doc) {
		g.dependents[dep] = append(g.dependents[dep], doc)
	}
	return nil
}

// Has reports whether id is in the graph.
func (g *Graph) Has(id string) bool { return g.nodes[id] }

// Imports returns the documents id imports directly, sorted.
func (g *Graph) Imports(id string) []string {
	return sorted(g.imports[id])
}

// Documents returns every node, sorted.
func (g *Graph) Documents() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount returns the number of documents.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of import edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, deps := range g.imports {
		n += len(deps)
	}
	return n
}

// Cycle returns an import cycle, or nil when the graph is acyclic.
func (g *Graph) Cycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack, cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = active
		stack = append(stack, id)
		for _, dep := range g.Imports(id) {
			switch state[dep] {
			case active:
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.Documents() {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// Levels groups documents by import depth. Level 0 holds documents that
// import nothing; a document sits one level above its deepest import.
func (g *Graph) Levels() ([][]string, error) {
	if c := g.Cycle(); c != nil {
		return nil, &CycleError{Path: c}
	}

	level := make(map[string]int, len(g.nodes))
	var depth func(id string) int
	depth = func(id string) int {
		if l, ok := level[id]; ok {
			return l
		}
		l := 0
		for _, dep := range g.imports[id] {
			l = max(l, depth(dep)+1)
		}
		level[id] = l
		return l
	}

	var levels [][]string
	for _, id := range g.Documents() {
		l := depth(id)
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], id)
	}
	return levels, nil
}

// TopologicalSort returns documents with imports before importers.
func (g *Graph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, l := range levels {
		out = append(out, l...)
	}
	return out, nil
}

// Affected returns the changed documents and every document importing them,
// directly or not, sorted. Unknown ids are ignored.
func (g *Graph) Affected(changed ...string) []string {
	seen := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, d := range g.dependents[id] {
			mark(d)
		}
	}
	for _, id := range changed {
		if g.nodes[id] {
			mark(id)
		}
	}
	return keys(seen)
}

// Upstream returns every document id imports, directly or not, sorted.
func (g *Graph) Upstream(id string) []string {
	seen := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		for _, dep := range g.imports[id] {
			if !seen[dep] {
				seen[dep] = true
				mark(dep)
			}
		}
	}
	mark(id)
	return keys(seen)
}

// Tree renders the imports below root as an indented tree. label formats
// each node; nil prints ids as they are.
func (g *Graph) Tree(root string, label func(string) string) string {
	if label == nil {
		label = func(s string) string { return s }
	}
	var b strings.Builder
	var walk func(id, prefix string, path []string)
	walk = func(id, prefix string, path []string) {
		deps := g.Imports(id)
		for i, dep := range deps {
			branch, next := "├── ", "│   "
			if i == len(deps)-1 {
				branch, next = "└── ", "    "
			}
			if slices.Contains(path, dep) {
				fmt.Fprintf(&b, "%s%s%s (cycle)\n", prefix, branch, label(dep))
				continue
			}
			fmt.Fprintf(&b, "%s%s%s\n", prefix, branch, label(dep))
			walk(dep, prefix+next, append(path, dep))
		}
	}
	b.WriteString(label(root) + "\n")
	walk(root, "", []string{root})
	return b.String()
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	sort.Strings(out)
	return out
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
