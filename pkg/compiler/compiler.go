// Package compiler turns a pipeline document into a lazy frame plan.
//
// Compilation is a synchronous walk of the document tree with no engine I/O:
// sources become scans, transforms become frame operators and expression
// chains are folded into column expressions. Structural problems are
// reported as *CompileError naming the document and key path.
package compiler

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapetl/pkg/frame"
	"github.com/leapstack-labs/leapetl/pkg/pipeline"
)

// Options configures a Compiler.
type Options struct {
	// Resolver expands source paths; nil uses GlobResolver.
	Resolver Resolver
	Logger   *slog.Logger
}

// Compiler compiles documents. It holds no per-compilation state and is
// safe for concurrent use.
type Compiler struct {
	resolver Resolver
	logger   *slog.Logger
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	if opts.Resolver == nil {
		opts.Resolver = GlobResolver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Compiler{resolver: opts.Resolver, logger: opts.Logger}
}

// Plan is a compiled document.
type Plan struct {
	// Document is the canonical path of the root document, if it has one.
	Document string
	Frame    frame.Frame
	Exports  []Export
	// Imports lists config-source edges between documents.
	Imports []Import
	// Files lists every document read, root first.
	Files []string
}

// Import is one config-source reference.
type Import struct {
	From string
	To   string
}

// CompileFile parses and compiles the document at path.
func (c *Compiler) CompileFile(path string) (*Plan, error) {
	doc, err := pipeline.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return c.Compile(doc)
}

// Compile compiles doc. Relative paths in a document without a file are
// resolved against the working directory.
func (c *Compiler) Compile(doc *pipeline.Document) (*Plan, error) {
	st := &compilation{
		Compiler:  c,
		resolving: make(map[string]bool),
		plan:      &Plan{},
	}

	sc := scope{}
	if doc.File != "" {
		p, err := Canonical(doc.File)
		if err != nil {
			return nil, &CompileError{Kind: ErrPathNotFound, Document: doc.File, Err: err}
		}
		sc = scope{doc: p, dir: filepath.Dir(p)}
		st.plan.Document = p
		st.enter(p)
	}

	f, err := st.document(sc, doc)
	if err != nil {
		return nil, err
	}
	st.plan.Frame = f

	if st.plan.Exports, err = st.exports(sc.at("exports"), doc.Exports); err != nil {
		return nil, err
	}

	c.logger.Debug("compiled document",
		slog.String("document", sc.doc),
		slog.Int("transforms", len(doc.Transforms)),
		slog.Int("exports", len(doc.Exports)),
		slog.Int("imports", len(st.plan.Imports)))
	return st.plan, nil
}

// compilation is the state of one Compile call.
type compilation struct {
	*Compiler
	// resolving holds the documents on the current import path.
	resolving map[string]bool
	stack     []string
	plan      *Plan
}

func (st *compilation) enter(doc string) {
	st.resolving[doc] = true
	st.stack = append(st.stack, doc)
	if !slices.Contains(st.plan.Files, doc) {
		st.plan.Files = append(st.plan.Files, doc)
	}
}

func (st *compilation) leave(doc string) {
	delete(st.resolving, doc)
	st.stack = st.stack[:len(st.stack)-1]
}

// cycle renders the import path that loops back to doc.
func (st *compilation) cycle(doc string) string {
	start := slices.Index(st.stack, doc)
	names := make([]string, 0, len(st.stack)-start+1)
	for _, p := range st.stack[start:] {
		names = append(names, st.display(p))
	}
	return strings.Join(append(names, st.display(doc)), " -> ")
}

func (st *compilation) display(p string) string {
	if st.plan.Document == "" {
		return p
	}
	if rel, err := filepath.Rel(filepath.Dir(st.plan.Document), p); err == nil {
		return rel
	}
	return p
}

// document compiles the source and transforms of doc. Exports are ignored.
func (st *compilation) document(sc scope, doc *pipeline.Document) (frame.Frame, error) {
	f, err := st.load(sc.at("source"), doc.Source)
	if err != nil {
		return frame.Frame{}, err
	}
	return st.transforms(sc.at("transforms"), f, doc.Transforms)
}

func (st *compilation) transforms(sc scope, f frame.Frame, ts []pipeline.Transform) (frame.Frame, error) {
	for i, t := range ts {
		var err error
		if f, err = st.transform(sc.index(i).at(t.TransformTag()), f, t); err != nil {
			return frame.Frame{}, err
		}
	}
	return f, nil
}

// scope is the position of the node being compiled.
type scope struct {
	// doc is the canonical path of the document holding the node, empty for
	// input that did not come from a file.
	doc string
	// dir resolves relative paths named by the document.
	dir  string
	path pipeline.KeyPath
}

func (s scope) at(key string) scope {
	s.path = s.path.Key(key)
	return s
}

func (s scope) index(i int) scope {
	s.path = s.path.Index(i)
	return s
}

func (s scope) errorf(kind error, format string, args ...any) error {
	return &CompileError{Kind: kind, Document: s.doc, Path: s.path, Msg: fmt.Sprintf(format, args...)}
}

func (s scope) wrap(kind error, err error) error {
	return &CompileError{Kind: kind, Document: s.doc, Path: s.path, Err: err}
}
