package compiler

import (
	"github.com/leapstack-labs/leapetl/pkg/frame"
	"github.com/leapstack-labs/leapetl/pkg/pipeline"
)

// transform applies one transform to f. f itself is never modified.
func (st *compilation) transform(sc scope, f frame.Frame, t pipeline.Transform) (frame.Frame, error) {
	e := envOf(f)
	switch t := t.(type) {
	case pipeline.Select:
		exprs, err := st.outputs(sc, e, t.Columns)
		if err != nil {
			return frame.Frame{}, err
		}
		return f.Select(exprs...), nil

	case pipeline.Set:
		exprs, err := st.outputs(sc, e, t.Columns)
		if err != nil {
			return frame.Frame{}, err
		}
		return f.WithColumns(exprs...), nil

	case pipeline.Drop:
		names := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			csc := sc.index(i)
			col, ok := c.Expr.(pipeline.Column)
			if !ok || col.Name == "" || len(c.Ops) > 0 {
				return frame.Frame{}, csc.errorf(ErrUnsupportedOperation, "drop accepts plain column names only")
			}
			if _, err := e.column(csc, col.Name); err != nil {
				return frame.Frame{}, err
			}
			names[i] = col.Name
		}
		return f.Drop(names...), nil

	case pipeline.Rename:
		return rename(sc, e, f, t)

	case pipeline.Filter:
		if len(t.Predicates) == 0 {
			return f, nil
		}
		var pred frame.Expr
		for i, c := range t.Predicates {
			v, err := st.predicate(sc.index(i), e, c, "filter")
			if err != nil {
				return frame.Frame{}, err
			}
			if i == 0 {
				pred = v
				continue
			}
			pred = pred.And(v)
		}
		return f.Filter(pred), nil

	case pipeline.Extract:
		return extract(sc, e, f, t)

	case pipeline.Unnest:
		if err := columnsOfKind(sc, e, t.Columns, frame.KindStruct, "unnest"); err != nil {
			return frame.Frame{}, err
		}
		return f.Unnest(t.Columns...), nil

	case pipeline.Explode:
		if err := columnsOfKind(sc, e, t.Columns, frame.KindList, "explode"); err != nil {
			return frame.Frame{}, err
		}
		return f.Explode(t.Columns...), nil

	case pipeline.SortBy:
		keys := make([]frame.SortKey, len(t.Keys))
		for i, k := range t.Keys {
			if _, err := e.column(sc.index(i), k.Column); err != nil {
				return frame.Frame{}, err
			}
			keys[i] = frame.SortKey{Column: k.Column, Descending: k.Descending}
		}
		return f.Sort(keys...), nil

	case pipeline.DropDuplicates:
		for i, name := range t.Subset {
			if _, err := e.column(sc.at("subset").index(i), name); err != nil {
				return frame.Frame{}, err
			}
		}
		keep := t.Keep
		if keep == "" {
			keep = pipeline.KeepAny
		}
		out, err := f.Unique(t.Subset, frame.Keep(keep))
		if err != nil {
			return frame.Frame{}, sc.at("keep").wrap(ErrUnsupportedOperation, err)
		}
		return out, nil

	case pipeline.Join:
		return st.join(sc, e, f, t)
	}
	return frame.Frame{}, sc.errorf(ErrUnsupportedOperation, "unsupported transform %T", t)
}

// outputs compiles projected chains, rejecting repeated output names.
func (st *compilation) outputs(sc scope, e env, cs []pipeline.Chain) ([]frame.Expr, error) {
	exprs, err := st.chains(sc, e, cs)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(exprs))
	for i, x := range exprs {
		if x.Name() == "" {
			return nil, sc.index(i).errorf(ErrUnsupportedOperation, "expression has no output name, add an alias")
		}
		if seen[x.Name()] {
			return nil, sc.index(i).errorf(ErrUnsupportedOperation, "duplicate output column %q, add an alias", x.Name())
		}
		seen[x.Name()] = true
	}
	return exprs, nil
}

func rename(sc scope, e env, f frame.Frame, t pipeline.Rename) (frame.Frame, error) {
	if t.Prefix != "" {
		return f.RenamePrefix(t.Prefix), nil
	}
	pairs := make([]frame.RenamePair, len(t.Columns))
	for i, c := range t.Columns {
		if _, err := e.column(sc.at(c.From), c.From); err != nil {
			return frame.Frame{}, err
		}
		pairs[i] = frame.RenamePair{From: c.From, To: c.To}
	}
	if e.known {
		to := make(map[string]string, len(pairs))
		for _, p := range pairs {
			to[p.From] = p.To
		}
		seen := make(map[string]bool, len(e.schema))
		for _, c := range e.schema {
			name := c.Name
			if n, ok := to[name]; ok {
				name = n
			}
			if seen[name] {
				return frame.Frame{}, sc.errorf(ErrUnsupportedOperation, "rename produces duplicate column %q", name)
			}
			seen[name] = true
		}
	}
	return f.Rename(pairs...), nil
}

// extract adds one string column per capture group of the pattern.
func extract(sc scope, e env, f frame.Frame, t pipeline.Extract) (frame.Frame, error) {
	c, err := e.column(sc.at("column"), t.Column)
	if err != nil {
		return frame.Frame{}, err
	}
	v := frame.ColumnRef(c)
	if err := expectText(sc.at("column"), v, "extract"); err != nil {
		return frame.Frame{}, err
	}
	re, err := compilePattern(sc.at("pattern"), t.Pattern)
	if err != nil {
		return frame.Frame{}, err
	}
	names, err := groupNames(sc.at("pattern"), re)
	if err != nil {
		return frame.Frame{}, err
	}

	if t.Filter {
		f = f.Filter(v.Contains(t.Pattern))
	}
	exprs := make([]frame.Expr, len(names))
	for i, n := range names {
		exprs[i] = v.ExtractGroup(t.Pattern, i+1, n)
	}
	return f.WithColumns(exprs...), nil
}

func columnsOfKind(sc scope, e env, names []string, want frame.Kind, what string) error {
	for i, name := range names {
		csc := sc.index(i)
		c, err := e.column(csc, name)
		if err != nil {
			return err
		}
		if err := expect(csc, frame.ColumnRef(c), want, what); err != nil {
			return err
		}
	}
	return nil
}

var joinTypes = map[pipeline.JoinHow]frame.JoinType{
	pipeline.JoinInner: frame.JoinInner,
	pipeline.JoinLeft:  frame.JoinLeft,
	pipeline.JoinRight: frame.JoinRight,
	pipeline.JoinFull:  frame.JoinFull,
	pipeline.JoinSemi:  frame.JoinSemi,
	pipeline.JoinAnti:  frame.JoinAnti,
}

// join compiles the right-hand loader and joins it to f.
func (st *compilation) join(sc scope, e env, f frame.Frame, t pipeline.Join) (frame.Frame, error) {
	right, err := st.load(sc.at("right"), t.Right)
	if err != nil {
		return frame.Frame{}, err
	}
	for i, k := range t.LeftOn {
		if _, err := e.column(sc.at("left_on").index(i), k); err != nil {
			return frame.Frame{}, err
		}
	}
	re := envOf(right)
	for i, k := range t.RightOn {
		if _, err := re.column(sc.at("right_on").index(i), k); err != nil {
			return frame.Frame{}, err
		}
	}

	how := t.How
	if how == "" {
		how = pipeline.JoinInner
	}
	jt, ok := joinTypes[how]
	if !ok {
		return frame.Frame{}, sc.at("how").errorf(ErrUnsupportedOperation, "unknown join type %q", how)
	}
	out, err := f.Join(right, t.LeftOn, t.RightOn, jt)
	if err != nil {
		return frame.Frame{}, sc.wrap(ErrUnsupportedOperation, err)
	}
	return out, nil
}
