package compiler

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapetl/pkg/frame"
	"github.com/leapstack-labs/leapetl/pkg/pipeline"
)

// env is the schema context an expression is compiled against.
type env struct {
	schema frame.Schema
	known  bool
	// inList is set inside a list filter predicate, where elem is the kind
	// of the list element.
	inList bool
	elem   frame.Kind
}

func envOf(f frame.Frame) env {
	schema, known := f.Schema()
	return env{schema: schema, known: known}
}

// column looks up name, failing only when the schema is known.
func (e env) column(sc scope, name string) (frame.Column, error) {
	if !e.known {
		return frame.Column{Name: name}, nil
	}
	c, ok := e.schema.Lookup(name)
	if !ok {
		return frame.Column{}, sc.errorf(ErrUnknownColumn, "column %q not found (available: %s)",
			name, strings.Join(e.schema.Names(), ", "))
	}
	return c, nil
}

func expect(sc scope, v frame.Expr, want frame.Kind, what string) error {
	if !v.Kind().Compatible(want) {
		return sc.errorf(ErrTypeMismatch, "%s needs a %s value, got %s", what, want, v.Kind())
	}
	return nil
}

// expectText accepts values with a string representation for regex
// operations. Lists and structs have none.
func expectText(sc scope, v frame.Expr, what string) error {
	if k := v.Kind(); k == frame.KindList || k == frame.KindStruct {
		return sc.errorf(ErrTypeMismatch, "%s needs a scalar value, got %s", what, k)
	}
	return nil
}

// compilePattern validates a regular expression. Patterns follow RE2 syntax,
// which DuckDB shares.
func compilePattern(sc scope, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, sc.wrap(ErrInvalidPattern, err)
	}
	return re, nil
}

// groupNames names the capture groups of re: named groups keep their names,
// unnamed groups are named by their 1-based index.
func groupNames(sc scope, re *regexp.Regexp) ([]string, error) {
	subs := re.SubexpNames()[1:]
	if len(subs) == 0 {
		return nil, sc.errorf(ErrInvalidPattern, "pattern %q has no capture groups", re.String())
	}
	names := make([]string, len(subs))
	for i, n := range subs {
		if n == "" {
			n = strconv.Itoa(i + 1)
		}
		if slices.Contains(names[:i], n) {
			return nil, sc.errorf(ErrInvalidPattern, "capture group %q defined twice", n)
		}
		names[i] = n
	}
	return names, nil
}

func (st *compilation) chains(sc scope, e env, cs []pipeline.Chain) ([]frame.Expr, error) {
	out := make([]frame.Expr, len(cs))
	for i, c := range cs {
		v, err := st.chain(sc.index(i), e, c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// chain folds c left to right into one expression.
func (st *compilation) chain(sc scope, e env, c pipeline.Chain) (frame.Expr, error) {
	if c.Expr == nil {
		return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "expression chain has no base expression")
	}
	v, err := st.expression(sc.at(c.Expr.ExpressionTag()), e, c.Expr)
	if err != nil {
		return frame.Expr{}, err
	}
	for i, op := range c.Ops {
		if v, err = st.operation(sc.at("ops").index(i).at(op.OperationTag()), e, v, op); err != nil {
			return frame.Expr{}, err
		}
	}
	return v, nil
}

// predicate compiles a chain that must yield a boolean.
func (st *compilation) predicate(sc scope, e env, c pipeline.Chain, what string) (frame.Expr, error) {
	v, err := st.chain(sc, e, c)
	if err != nil {
		return frame.Expr{}, err
	}
	if err := expect(sc, v, frame.KindBool, what); err != nil {
		return frame.Expr{}, err
	}
	return v, nil
}

func (st *compilation) expression(sc scope, e env, x pipeline.Expression) (frame.Expr, error) {
	switch x := x.(type) {
	case pipeline.Column:
		if x.Name == "" {
			return element(sc, e)
		}
		c, err := e.column(sc, x.Name)
		if err != nil {
			return frame.Expr{}, err
		}
		return frame.ColumnRef(c), nil

	case pipeline.Literal:
		return frame.Lit(x.Value), nil

	case pipeline.Null:
		return frame.Null(), nil

	case pipeline.Element:
		return element(sc, e)

	case pipeline.Match:
		c, err := e.column(sc.at("column"), x.Column)
		if err != nil {
			return frame.Expr{}, err
		}
		v := frame.ColumnRef(c)
		if err := expectText(sc.at("column"), v, "match"); err != nil {
			return frame.Expr{}, err
		}
		if _, err := compilePattern(sc.at("pattern"), x.Pattern); err != nil {
			return frame.Expr{}, err
		}
		return v.Contains(x.Pattern), nil

	case pipeline.And:
		return st.combine(sc, e, x.Conditions, "and", frame.Expr.And)

	case pipeline.Or:
		return st.combine(sc, e, x.Conditions, "or", frame.Expr.Or)

	case pipeline.Not:
		v, err := st.predicate(sc, e, x.Operand, "not")
		if err != nil {
			return frame.Expr{}, err
		}
		return v.Not(), nil
	}
	return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "unsupported expression %T", x)
}

func element(sc scope, e env) (frame.Expr, error) {
	if !e.inList {
		return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "the list element can only be referenced inside a list filter")
	}
	return frame.Element(e.elem), nil
}

// combine folds boolean conditions left-associatively with join.
func (st *compilation) combine(sc scope, e env, conds []pipeline.Chain, what string, join func(frame.Expr, frame.Expr) frame.Expr) (frame.Expr, error) {
	if len(conds) < 2 {
		return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "%s needs at least 2 conditions, got %d", what, len(conds))
	}
	var out frame.Expr
	for i, c := range conds {
		v, err := st.predicate(sc.index(i), e, c, what)
		if err != nil {
			return frame.Expr{}, err
		}
		if i == 0 {
			out = v
			continue
		}
		out = join(out, v)
	}
	return out, nil
}

func (st *compilation) operation(sc scope, e env, v frame.Expr, op pipeline.Operation) (frame.Expr, error) {
	switch op := op.(type) {
	case pipeline.Alias:
		if op.Name == "" {
			return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "alias must not be empty")
		}
		return v.Alias(op.Name), nil

	case pipeline.ExtractGroups:
		if err := expectText(sc, v, "extract_groups"); err != nil {
			return frame.Expr{}, err
		}
		re, err := compilePattern(sc, op.Pattern)
		if err != nil {
			return frame.Expr{}, err
		}
		names, err := groupNames(sc, re)
		if err != nil {
			return frame.Expr{}, err
		}
		return v.ExtractGroups(op.Pattern, names), nil

	case pipeline.Contains:
		if err := expectText(sc, v, "contains"); err != nil {
			return frame.Expr{}, err
		}
		if _, err := compilePattern(sc, op.Pattern); err != nil {
			return frame.Expr{}, err
		}
		return v.Contains(op.Pattern), nil

	case pipeline.IsNull:
		if op.Null {
			return v.IsNull(), nil
		}
		return v.IsNotNull(), nil

	case pipeline.FillNull:
		fill, err := st.chain(sc, e, op.Value)
		if err != nil {
			return frame.Expr{}, err
		}
		if !fill.Kind().Compatible(v.Kind()) {
			return frame.Expr{}, sc.errorf(ErrTypeMismatch, "cannot fill %s nulls with a %s value", v.Kind(), fill.Kind())
		}
		return v.FillNull(fill), nil

	case pipeline.Compare:
		other, err := st.chain(sc, e, op.Value)
		if err != nil {
			return frame.Expr{}, err
		}
		if !other.Kind().Compatible(v.Kind()) {
			return frame.Expr{}, sc.errorf(ErrTypeMismatch, "cannot compare %s with %s", v.Kind(), other.Kind())
		}
		cmp, ok := compareOps[op.Op]
		if !ok {
			return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "unknown comparison %q", op.Op)
		}
		return v.Compare(cmp, other), nil

	case pipeline.AndWith:
		return st.chainWith(sc, e, v, op.Conditions, "and", frame.Expr.And)

	case pipeline.OrWith:
		return st.chainWith(sc, e, v, op.Conditions, "or", frame.Expr.Or)

	case pipeline.Str:
		return strOp(sc, v, op)

	case pipeline.List:
		return st.listOp(sc, e, v, op)

	case pipeline.Field:
		if err := expect(sc, v, frame.KindStruct, "field"); err != nil {
			return frame.Expr{}, err
		}
		if fields := v.Fields(); fields != nil && !slices.Contains(fields, op.Name) {
			return frame.Expr{}, sc.errorf(ErrUnknownColumn, "struct has no field %q (fields: %s)",
				op.Name, strings.Join(fields, ", "))
		}
		return v.Field(op.Name), nil
	}
	return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "unsupported operation %T", op)
}

var compareOps = map[pipeline.CompareOp]frame.CompareOp{
	pipeline.OpEq:   frame.OpEq,
	pipeline.OpNeq:  frame.OpNeq,
	pipeline.OpGt:   frame.OpGt,
	pipeline.OpLt:   frame.OpLt,
	pipeline.OpGtEq: frame.OpGtEq,
	pipeline.OpLtEq: frame.OpLtEq,
}

// chainWith combines the running boolean v with conds, keeping v's name.
func (st *compilation) chainWith(sc scope, e env, v frame.Expr, conds []pipeline.Chain, what string, join func(frame.Expr, frame.Expr) frame.Expr) (frame.Expr, error) {
	if err := expect(sc, v, frame.KindBool, what); err != nil {
		return frame.Expr{}, err
	}
	if len(conds) == 0 {
		return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "%s needs at least 1 condition", what)
	}
	for i, c := range conds {
		other, err := st.predicate(sc.index(i), e, c, what)
		if err != nil {
			return frame.Expr{}, err
		}
		v = join(v, other)
	}
	return v, nil
}

func strOp(sc scope, v frame.Expr, op pipeline.Str) (frame.Expr, error) {
	if err := expect(sc, v, frame.KindString, "str."+string(op.Op)); err != nil {
		return frame.Expr{}, err
	}
	switch op.Op {
	case pipeline.StrToLowercase:
		return v.ToLowercase(), nil
	case pipeline.StrToUppercase:
		return v.ToUppercase(), nil
	case pipeline.StrLen:
		return v.StrLen(), nil
	case pipeline.StrStripChars:
		if op.Chars != nil {
			return v.StripCharsOf(*op.Chars), nil
		}
		return v.StripChars(), nil
	}
	return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "unknown string operation %q", op.Op)
}

func (st *compilation) listOp(sc scope, e env, v frame.Expr, op pipeline.List) (frame.Expr, error) {
	if err := expect(sc, v, frame.KindList, "list."+string(op.Op)); err != nil {
		return frame.Expr{}, err
	}
	switch op.Op {
	case pipeline.ListFirst:
		return v.ListFirst(), nil
	case pipeline.ListLen:
		return v.ListLen(), nil
	case pipeline.ListJoin:
		return v.ListJoin(op.Separator), nil
	case pipeline.ListFilter:
		if op.Predicate == nil {
			return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "list filter needs a predicate")
		}
		inner := e
		inner.inList, inner.elem = true, v.ElemKind()
		pred, err := st.predicate(sc.at("filter"), inner, *op.Predicate, "list.filter")
		if err != nil {
			return frame.Expr{}, err
		}
		return v.ListFilter(pred), nil
	}
	return frame.Expr{}, sc.errorf(ErrUnsupportedOperation, "unknown list operation %q", op.Op)
}
