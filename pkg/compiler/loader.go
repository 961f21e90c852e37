package compiler

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/leapstack-labs/leapetl/pkg/frame"
	"github.com/leapstack-labs/leapetl/pkg/pipeline"
)

// load compiles a loader: its source followed by its own transforms.
func (st *compilation) load(sc scope, l pipeline.Loader) (frame.Frame, error) {
	if l.Source == nil {
		return frame.Frame{}, sc.errorf(ErrUnsupportedOperation, "loader has no source")
	}
	f, err := st.source(sc.at(l.Source.SourceTag()), l.Source)
	if err != nil {
		return frame.Frame{}, err
	}
	return st.transforms(sc.at("transforms"), f, l.Transforms)
}

func (st *compilation) source(sc scope, src pipeline.Source) (frame.Frame, error) {
	switch s := src.(type) {
	case pipeline.CSVSource:
		paths, err := st.resolve(sc.at("path"), s.Path)
		if err != nil {
			return frame.Frame{}, err
		}
		types, err := columnTypes(sc.at("schema"), s.Schema)
		if err != nil {
			return frame.Frame{}, err
		}
		header := true
		if s.HasHeader != nil {
			header = *s.HasHeader
		}
		return frame.ScanCSV(paths, frame.CSVReadOptions{
			Separator: s.Separator,
			HasHeader: header,
			Types:     types,
		}), nil

	case pipeline.JSONSource:
		paths, types, err := st.files(sc, s.Path, s.Schema)
		if err != nil {
			return frame.Frame{}, err
		}
		return frame.ScanJSON(paths, types), nil

	case pipeline.JSONLineSource:
		paths, types, err := st.files(sc, s.Path, s.Schema)
		if err != nil {
			return frame.Frame{}, err
		}
		return frame.ScanNDJSON(paths, types), nil

	case pipeline.ParquetSource:
		paths, types, err := st.files(sc, s.Path, s.Schema)
		if err != nil {
			return frame.Frame{}, err
		}
		return frame.ScanParquet(paths, types), nil

	case pipeline.InlineSource:
		return inline(sc.at("columns"), s)

	case pipeline.ConfigSource:
		return st.importDocument(sc, s.Path)
	}
	return frame.Frame{}, sc.errorf(ErrUnsupportedOperation, "unsupported source %T", src)
}

func (st *compilation) files(sc scope, pattern string, schema pipeline.Schema) ([]string, []frame.TypedColumn, error) {
	paths, err := st.resolve(sc.at("path"), pattern)
	if err != nil {
		return nil, nil, err
	}
	types, err := columnTypes(sc.at("schema"), schema)
	if err != nil {
		return nil, nil, err
	}
	return paths, types, nil
}

// resolve expands pattern relative to the directory of the current document.
func (st *compilation) resolve(sc scope, pattern string) ([]string, error) {
	paths, err := st.resolver.Resolve(locate(sc.dir, pattern))
	if err != nil {
		return nil, sc.wrap(ErrPathNotFound, err)
	}
	return paths, nil
}

// importDocument compiles the document at p, without its exports, into a
// frame. Documents already on the import path are rejected.
func (st *compilation) importDocument(sc scope, p string) (frame.Frame, error) {
	sc = sc.at("path")
	target, err := Canonical(locate(sc.dir, p))
	if err != nil {
		return frame.Frame{}, sc.wrap(ErrPathNotFound, err)
	}
	if st.resolving[target] {
		return frame.Frame{}, sc.errorf(ErrCyclicImport, "%s", st.cycle(target))
	}

	edge := Import{From: sc.doc, To: target}
	if !slices.Contains(st.plan.Imports, edge) {
		st.plan.Imports = append(st.plan.Imports, edge)
	}

	doc, err := pipeline.ParseFile(target)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%s: importing %s: %w", sc.path, st.display(target), err)
	}

	st.logger.Debug("importing document", slog.String("from", sc.doc), slog.String("document", target))
	st.enter(target)
	defer st.leave(target)
	return st.document(scope{doc: target, dir: filepath.Dir(target)}, doc)
}

func columnTypes(sc scope, schema pipeline.Schema) ([]frame.TypedColumn, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	out := make([]frame.TypedColumn, len(schema))
	for i, field := range schema {
		t, err := frame.ParseType(field.Type)
		if err != nil {
			return nil, sc.at(field.Name).wrap(ErrUnsupportedOperation, err)
		}
		out[i] = frame.TypedColumn{Name: field.Name, Type: t}
	}
	return out, nil
}

func inline(sc scope, s pipeline.InlineSource) (frame.Frame, error) {
	if len(s.Columns) == 0 {
		return frame.Frame{}, sc.errorf(ErrUnsupportedOperation, "inline source needs at least one column")
	}
	seen := make(map[string]bool, len(s.Columns))
	columns := make([]frame.InlineColumn, len(s.Columns))
	for i, c := range s.Columns {
		csc := sc.index(i)
		if seen[c.Name] {
			return frame.Frame{}, csc.at("name").errorf(ErrUnsupportedOperation, "duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		t, err := frame.ParseType(c.DataType)
		if err != nil {
			return frame.Frame{}, csc.at("datatype").wrap(ErrUnsupportedOperation, err)
		}
		columns[i] = frame.InlineColumn{Name: c.Name, Type: t, Values: c.Values}
	}
	return frame.Inline(columns), nil
}
