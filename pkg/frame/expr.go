package frame

import (
	"fmt"
	"strconv"
	"strings"
)

// ElementParam is the lambda parameter bound to the current list element
// inside a list filter predicate.
const ElementParam = "__elem"

// LiteralName is the output name of literal expressions.
const LiteralName = "literal"

// Expr is an immutable column expression. The zero value is not usable; build
// expressions with Col, Element, Lit or Null and the methods below.
type Expr struct {
	sql    string
	name   string
	kind   Kind
	elem   Kind
	fields []string
}

// Col references a column by name with no type information.
func Col(name string) Expr {
	return Expr{sql: QuoteIdent(name), name: name}
}

// ColumnRef references a column carrying the type information of c.
func ColumnRef(c Column) Expr {
	return Expr{sql: QuoteIdent(c.Name), name: c.Name, kind: c.Kind, elem: c.Elem, fields: c.Fields}
}

// Element references the current list element. elem is the element kind of
// the list being filtered.
func Element(elem Kind) Expr {
	return Expr{sql: ElementParam, kind: elem}
}

// Lit is a string literal. DuckDB casts string literals implicitly, so the
// literal compares against numeric and temporal columns as well.
func Lit(value string) Expr {
	return Expr{sql: QuoteString(value), name: LiteralName}
}

// Null is the SQL NULL literal.
func Null() Expr {
	return Expr{sql: "NULL", name: LiteralName, kind: KindNull}
}

// SQL returns the expression rendered as DuckDB SQL.
func (e Expr) SQL() string { return e.sql }

// Name returns the output column name.
func (e Expr) Name() string { return e.name }

// Kind returns the value kind, KindUnknown when it cannot be derived.
func (e Expr) Kind() Kind { return e.kind }

// ElemKind returns the element kind of a list expression.
func (e Expr) ElemKind() Kind { return e.elem }

// Fields returns the known field names of a struct expression, or nil.
func (e Expr) Fields() []string { return e.fields }

func (e Expr) String() string { return e.sql }

func (e Expr) derive(sql string, kind Kind) Expr {
	return Expr{sql: sql, name: e.name, kind: kind}
}

func (e Expr) column() Column {
	return Column{Name: e.name, Kind: e.kind, Elem: e.elem, Fields: e.fields}
}

func (e Expr) projection() string {
	return e.sql + " AS " + QuoteIdent(e.name)
}

// Alias renames the output column.
func (e Expr) Alias(name string) Expr {
	e.name = name
	return e
}

// IsNull is true where the value is null.
func (e Expr) IsNull() Expr {
	return e.derive("("+e.sql+" IS NULL)", KindBool)
}

// IsNotNull is true where the value is present.
func (e Expr) IsNotNull() Expr {
	return e.derive("("+e.sql+" IS NOT NULL)", KindBool)
}

// FillNull replaces nulls with value.
func (e Expr) FillNull(value Expr) Expr {
	kind := e.kind
	if !kind.Known() {
		kind = value.kind
	}
	out := e.derive("coalesce("+e.sql+", "+value.sql+")", kind)
	out.elem, out.fields = e.elem, e.fields
	return out
}

// CompareOp is a binary comparison.
type CompareOp int

// Comparison operators.
const (
	OpEq CompareOp = iota
	OpNeq
	OpGt
	OpLt
	OpGtEq
	OpLtEq
)

var compareSQL = map[CompareOp]string{
	OpEq:   "=",
	OpNeq:  "<>",
	OpGt:   ">",
	OpLt:   "<",
	OpGtEq: ">=",
	OpLtEq: "<=",
}

// Compare applies a comparison against other. Comparing with null yields null.
func (e Expr) Compare(op CompareOp, other Expr) Expr {
	sym, ok := compareSQL[op]
	if !ok {
		panic(fmt.Sprintf("frame: unknown comparison operator %d", op))
	}
	return e.derive("("+e.sql+" "+sym+" "+other.sql+")", KindBool)
}

// Eq is shorthand for Compare(OpEq, other).
func (e Expr) Eq(other Expr) Expr { return e.Compare(OpEq, other) }

// And combines e with other using three-valued logical AND.
func (e Expr) And(other Expr) Expr {
	return e.derive("("+e.sql+" AND "+other.sql+")", KindBool)
}

// Or combines e with other using three-valued logical OR.
func (e Expr) Or(other Expr) Expr {
	return e.derive("("+e.sql+" OR "+other.sql+")", KindBool)
}

// Not negates a boolean expression.
func (e Expr) Not() Expr {
	return e.derive("(NOT "+e.sql+")", KindBool)
}

// text is e as VARCHAR. Values not known to be strings are cast, so regex
// functions see their string representation.
func (e Expr) text() string {
	if e.kind == KindString {
		return e.sql
	}
	return "CAST(" + e.sql + " AS VARCHAR)"
}

// Contains is true where the string form of e matches pattern anywhere.
func (e Expr) Contains(pattern string) Expr {
	return e.derive("regexp_matches("+e.text()+", "+QuoteString(pattern)+")", KindBool)
}

// ExtractGroups builds a struct with one string field per capture group.
// groups lists the field names in group order. Rows that do not match yield
// a null struct.
func (e Expr) ExtractGroups(pattern string, groups []string) Expr {
	p, v := QuoteString(pattern), e.text()
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = fmt.Sprintf("%s := regexp_extract(%s, %s, %d)", QuoteIdent(g), v, p, i+1)
	}
	out := e.derive(fmt.Sprintf("CASE WHEN regexp_matches(%s, %s) THEN struct_pack(%s) END",
		v, p, strings.Join(parts, ", ")), KindStruct)
	out.fields = append([]string(nil), groups...)
	return out
}

// ExtractGroup yields capture group index (1-based) of pattern, named name,
// or null where the string does not match.
func (e Expr) ExtractGroup(pattern string, index int, name string) Expr {
	p, v := QuoteString(pattern), e.text()
	out := e.derive(fmt.Sprintf("CASE WHEN regexp_matches(%s, %s) THEN regexp_extract(%s, %s, %s) END",
		v, p, v, p, strconv.Itoa(index)), KindString)
	return out.Alias(name)
}

// ToLowercase lowercases a string.
func (e Expr) ToLowercase() Expr { return e.derive("lower("+e.sql+")", KindString) }

// ToUppercase uppercases a string.
func (e Expr) ToUppercase() Expr { return e.derive("upper("+e.sql+")", KindString) }

// StrLen is the length of a string in characters.
func (e Expr) StrLen() Expr { return e.derive("length("+e.sql+")", KindNumeric) }

// StripChars trims whitespace from both ends.
func (e Expr) StripChars() Expr { return e.derive("trim("+e.sql+")", KindString) }

// StripCharsOf trims any of chars from both ends.
func (e Expr) StripCharsOf(chars string) Expr {
	return e.derive("trim("+e.sql+", "+QuoteString(chars)+")", KindString)
}

// ListFirst is the first element of a list, null for an empty list.
func (e Expr) ListFirst() Expr {
	out := e.derive("list_extract("+e.sql+", 1)", e.elem)
	return out
}

// ListLen is the number of elements of a list.
func (e Expr) ListLen() Expr { return e.derive("len("+e.sql+")", KindNumeric) }

// ListJoin concatenates list elements with separator.
func (e Expr) ListJoin(separator string) Expr {
	return e.derive("array_to_string("+e.sql+", "+QuoteString(separator)+")", KindString)
}

// ListFilter keeps the elements for which predicate, written in terms of
// Element, is true.
func (e Expr) ListFilter(predicate Expr) Expr {
	out := e.derive("list_filter("+e.sql+", "+ElementParam+" -> "+predicate.sql+")", KindList)
	out.elem = e.elem
	return out
}

// Field extracts a struct field. The output is named after the field.
func (e Expr) Field(name string) Expr {
	out := e.derive("struct_extract("+e.sql+", "+QuoteString(name)+")", KindUnknown)
	if e.kind == KindStruct && e.fields != nil {
		// Fields produced by ExtractGroups are all strings.
		out.kind = KindString
	}
	return out.Alias(name)
}
