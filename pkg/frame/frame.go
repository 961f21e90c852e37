package frame

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Internal ordinal columns used to keep row order deterministic.
const (
	ordColumn      = "__leapetl_ord"
	leftOrdColumn  = "__leapetl_l"
	rightOrdColumn = "__leapetl_r"
)

// Column describes one column of a frame.
type Column struct {
	Name string
	Kind Kind
	// Elem is the element kind of list columns.
	Elem Kind
	// Fields lists struct field names when known.
	Fields []string
}

// Schema is an ordered list of columns.
type Schema []Column

// Lookup finds a column by name.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Frame is an immutable lazy relation.
type Frame struct {
	sql    string
	schema Schema
	known  bool
}

// FromSQL wraps a SELECT statement. A nil schema means the columns are not
// known until execution.
func FromSQL(sql string, schema Schema) Frame {
	return Frame{sql: sql, schema: schema, known: schema != nil}
}

// SQL returns the query that computes the frame.
func (f Frame) SQL() string { return f.sql }

// Schema returns the columns and whether they are known statically.
func (f Frame) Schema() (Schema, bool) { return f.schema, f.known }

func (f Frame) String() string { return f.sql }

func (f Frame) from() string {
	return "(" + f.sql + ") AS t"
}

func (f Frame) derive(sql string, schema Schema, known bool) Frame {
	if !known {
		schema = nil
	}
	return Frame{sql: sql, schema: schema, known: known}
}

// numbered appends a row ordinal to f.
func (f Frame) numbered(name string) string {
	return "SELECT *, row_number() OVER () AS " + QuoteIdent(name) + " FROM " + f.from()
}

// Select projects exprs. The result schema is always known.
func (f Frame) Select(exprs ...Expr) Frame {
	parts := make([]string, len(exprs))
	schema := make(Schema, len(exprs))
	for i, e := range exprs {
		parts[i] = e.projection()
		schema[i] = e.column()
	}
	return f.derive("SELECT "+strings.Join(parts, ", ")+" FROM "+f.from(), schema, true)
}

// WithColumns adds or replaces columns. With a known schema replaced
// columns keep their position; otherwise replaced columns move to the end.
func (f Frame) WithColumns(exprs ...Expr) Frame {
	if len(exprs) == 0 {
		return f
	}
	byName := make(map[string]Expr, len(exprs))
	for _, e := range exprs {
		byName[e.name] = e
	}
	if !f.known {
		names := make([]string, 0, len(exprs))
		parts := make([]string, 0, len(exprs)+1)
		for _, e := range exprs {
			names = append(names, e.name)
		}
		parts = append(parts, "COLUMNS(c -> c NOT IN ("+strings.Join(quoteStrings(names), ", ")+"))")
		for _, e := range exprs {
			parts = append(parts, e.projection())
		}
		return f.derive("SELECT "+strings.Join(parts, ", ")+" FROM "+f.from(), nil, false)
	}

	parts := make([]string, 0, len(f.schema)+len(exprs))
	schema := make(Schema, 0, len(f.schema)+len(exprs))
	seen := make(map[string]bool, len(exprs))
	for _, c := range f.schema {
		if e, ok := byName[c.Name]; ok {
			parts = append(parts, e.projection())
			schema = append(schema, e.column())
			seen[c.Name] = true
			continue
		}
		parts = append(parts, QuoteIdent(c.Name))
		schema = append(schema, c)
	}
	for _, e := range exprs {
		if seen[e.name] {
			continue
		}
		seen[e.name] = true
		parts = append(parts, e.projection())
		schema = append(schema, e.column())
	}
	return f.derive("SELECT "+strings.Join(parts, ", ")+" FROM "+f.from(), schema, true)
}

// Filter keeps rows where predicate is true. Null counts as false.
func (f Frame) Filter(predicate Expr) Frame {
	return f.derive("SELECT * FROM "+f.from()+" WHERE "+predicate.sql, f.schema, f.known)
}

// Drop removes columns.
func (f Frame) Drop(names ...string) Frame {
	if len(names) == 0 {
		return f
	}
	if f.known {
		var kept Schema
		for _, c := range f.schema {
			if !slices.Contains(names, c.Name) {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			return f.derive("SELECT "+identList(kept.Names())+" FROM "+f.from(), kept, true)
		}
	}
	return f.derive("SELECT * EXCLUDE ("+identList(names)+") FROM "+f.from(), nil, false)
}

// RenamePair maps an existing column name to a new one.
type RenamePair struct {
	From string
	To   string
}

// Rename renames columns in place.
func (f Frame) Rename(pairs ...RenamePair) Frame {
	if len(pairs) == 0 {
		return f
	}
	if f.known {
		to := make(map[string]string, len(pairs))
		for _, p := range pairs {
			to[p.From] = p.To
		}
		parts := make([]string, len(f.schema))
		schema := make(Schema, len(f.schema))
		for i, c := range f.schema {
			schema[i] = c
			if n, ok := to[c.Name]; ok {
				parts[i] = QuoteIdent(c.Name) + " AS " + QuoteIdent(n)
				schema[i].Name = n
				continue
			}
			parts[i] = QuoteIdent(c.Name)
		}
		return f.derive("SELECT "+strings.Join(parts, ", ")+" FROM "+f.from(), schema, true)
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = QuoteIdent(p.From) + " AS " + QuoteIdent(p.To)
	}
	return f.derive("SELECT * RENAME ("+strings.Join(parts, ", ")+") FROM "+f.from(), nil, false)
}

// RenamePrefix prepends prefix to every column name.
func (f Frame) RenamePrefix(prefix string) Frame {
	if prefix == "" {
		return f
	}
	if f.known {
		parts := make([]string, len(f.schema))
		schema := make(Schema, len(f.schema))
		for i, c := range f.schema {
			parts[i] = QuoteIdent(c.Name) + " AS " + QuoteIdent(prefix+c.Name)
			schema[i] = c
			schema[i].Name = prefix + c.Name
		}
		return f.derive("SELECT "+strings.Join(parts, ", ")+" FROM "+f.from(), schema, true)
	}
	// The alias is an RE2 rewrite string: backslashes in the prefix are literal.
	alias := strings.ReplaceAll(prefix, `\`, `\\`) + `\1`
	return f.derive("SELECT COLUMNS('^(.*)$') AS "+QuoteString(alias)+" FROM "+f.from(), nil, false)
}

// JoinType selects join semantics.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
	JoinSemi  JoinType = "semi"
	JoinAnti  JoinType = "anti"
)

var joinSQL = map[JoinType]string{
	JoinInner: "INNER JOIN",
	JoinLeft:  "LEFT JOIN",
	JoinRight: "RIGHT JOIN",
	JoinFull:  "FULL OUTER JOIN",
	JoinSemi:  "SEMI JOIN",
	JoinAnti:  "ANTI JOIN",
}

// Join combines f with right on equal key columns. Output rows follow the
// order of f, then of right. Key columns of one side are dropped: the right
// keys for inner and left joins, the left keys for right joins. Full joins
// keep both. Semi and anti joins keep only left columns.
//
// Output names are made unique the way DuckDB names subquery columns: a
// repeated name gets _1, _2 and so on, left columns first. Both the known and
// the unknown schema paths produce the same names.
func (f Frame) Join(right Frame, leftOn, rightOn []string, how JoinType) (Frame, error) {
	if len(leftOn) == 0 || len(leftOn) != len(rightOn) {
		return Frame{}, fmt.Errorf("join needs the same non-zero number of left and right keys, got %d and %d", len(leftOn), len(rightOn))
	}
	kw, ok := joinSQL[how]
	if !ok {
		return Frame{}, fmt.Errorf("unknown join type %q", how)
	}

	conds := make([]string, len(leftOn))
	for i := range leftOn {
		conds[i] = "l." + QuoteIdent(leftOn[i]) + " = r." + QuoteIdent(rightOn[i])
	}

	var (
		proj   string
		schema Schema
		known  bool
	)
	switch {
	case how == JoinSemi || how == JoinAnti:
		proj = "l.* EXCLUDE (" + QuoteIdent(leftOrdColumn) + ")"
		schema, known = f.schema, f.known
	case f.known && right.known:
		proj, schema = joinProjection(f.schema, right.schema, leftOn, rightOn, how)
		known = true
	default:
		lex := []string{leftOrdColumn}
		rex := []string{rightOrdColumn}
		switch how {
		case JoinInner, JoinLeft:
			rex = append(rex, rightOn...)
		case JoinRight:
			lex = append(lex, leftOn...)
		}
		proj = "l.* EXCLUDE (" + identList(lex) + "), r.* EXCLUDE (" + identList(rex) + ")"
	}

	order := "l." + QuoteIdent(leftOrdColumn) + " NULLS LAST"
	if how != JoinSemi && how != JoinAnti {
		order += ", r." + QuoteIdent(rightOrdColumn) + " NULLS LAST"
	}
	sql := fmt.Sprintf("SELECT %s FROM (%s) AS l %s (%s) AS r ON %s ORDER BY %s",
		proj, f.numbered(leftOrdColumn), kw, right.numbered(rightOrdColumn),
		strings.Join(conds, " AND "), order)
	if !known && how != JoinSemi && how != JoinAnti {
		// Reading the join as a subquery makes DuckDB rename colliding
		// columns, so no consumer sees a repeated name.
		sql = "SELECT * FROM (" + sql + ") AS j"
	}
	return f.derive(sql, schema, known), nil
}

func joinProjection(left, right Schema, leftOn, rightOn []string, how JoinType) (string, Schema) {
	var sides []string
	var schema Schema
	for _, c := range left {
		if how == JoinRight && slices.Contains(leftOn, c.Name) {
			continue
		}
		sides = append(sides, "l")
		schema = append(schema, c)
	}
	for _, c := range right {
		if (how == JoinInner || how == JoinLeft) && slices.Contains(rightOn, c.Name) {
			continue
		}
		sides = append(sides, "r")
		schema = append(schema, c)
	}

	names := uniqueNames(schema.Names())
	parts := make([]string, len(schema))
	for i, c := range schema {
		parts[i] = sides[i] + "." + QuoteIdent(c.Name)
		if names[i] != c.Name {
			parts[i] += " AS " + QuoteIdent(names[i])
		}
		schema[i].Name = names[i]
	}
	return strings.Join(parts, ", "), schema
}

// uniqueNames renames repeated names as DuckDB does for subquery columns.
// Names compare case-insensitively. The first occurrence keeps its name and
// later ones get the lowest _N suffix not seen so far.
func uniqueNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, name := range names {
		low := strings.ToLower(name)
		if _, dup := seen[low]; !dup {
			seen[low]++
			out[i] = name
			continue
		}
		candidate := name + "_" + strconv.Itoa(seen[low])
		for {
			if _, taken := seen[strings.ToLower(candidate)]; !taken {
				break
			}
			seen[low]++
			candidate = name + "_" + strconv.Itoa(seen[low])
		}
		seen[strings.ToLower(candidate)]++
		out[i] = candidate
	}
	return out
}

// SortKey is one sort column.
type SortKey struct {
	Column     string
	Descending bool
}

// Sort orders rows by keys. Nulls sort last; ties keep their input order.
func (f Frame) Sort(keys ...SortKey) Frame {
	if len(keys) == 0 {
		return f
	}
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		dir := "ASC"
		if k.Descending {
			dir = "DESC"
		}
		parts = append(parts, QuoteIdent(k.Column)+" "+dir+" NULLS LAST")
	}
	parts = append(parts, QuoteIdent(ordColumn))
	sql := fmt.Sprintf("SELECT * EXCLUDE (%s) FROM (%s) AS t ORDER BY %s",
		QuoteIdent(ordColumn), f.numbered(ordColumn), strings.Join(parts, ", "))
	return f.derive(sql, f.schema, f.known)
}

// Keep selects which row of a duplicate group survives.
type Keep string

// Keep strategies.
const (
	KeepFirst Keep = "first"
	KeepLast  Keep = "last"
	KeepAny   Keep = "any"
	KeepNone  Keep = "none"
)

// Unique removes rows duplicated on subset, or on all columns when subset is
// empty. Surviving rows keep their input order except with KeepAny.
func (f Frame) Unique(subset []string, keep Keep) (Frame, error) {
	if len(subset) == 0 && f.known {
		subset = f.schema.Names()
	}
	ord := QuoteIdent(ordColumn)

	if len(subset) == 0 {
		var sql string
		switch keep {
		case KeepAny:
			sql = "SELECT DISTINCT * FROM " + f.from()
		case KeepFirst, KeepLast, KeepNone:
			agg, having := "min", ""
			if keep == KeepLast {
				agg = "max"
			}
			if keep == KeepNone {
				having = " HAVING count(*) = 1"
			}
			sql = fmt.Sprintf("SELECT * EXCLUDE (%s) FROM (SELECT COLUMNS(c -> c <> %s), %s(%s) AS %s FROM (%s) AS t GROUP BY ALL%s) AS t ORDER BY %s",
				ord, QuoteString(ordColumn), agg, ord, ord, f.numbered(ordColumn), having, ord)
		default:
			return Frame{}, fmt.Errorf("unknown keep strategy %q", keep)
		}
		return f.derive(sql, f.schema, f.known), nil
	}

	partition := identList(subset)
	var qualify string
	switch keep {
	case KeepAny:
		return f.derive("SELECT DISTINCT ON ("+partition+") * FROM "+f.from(), f.schema, f.known), nil
	case KeepFirst:
		qualify = fmt.Sprintf("row_number() OVER (PARTITION BY %s ORDER BY %s) = 1", partition, ord)
	case KeepLast:
		qualify = fmt.Sprintf("row_number() OVER (PARTITION BY %s ORDER BY %s DESC) = 1", partition, ord)
	case KeepNone:
		qualify = fmt.Sprintf("count(*) OVER (PARTITION BY %s) = 1", partition)
	default:
		return Frame{}, fmt.Errorf("unknown keep strategy %q", keep)
	}
	sql := fmt.Sprintf("SELECT * EXCLUDE (%s) FROM (%s) AS t QUALIFY %s ORDER BY %s",
		ord, f.numbered(ordColumn), qualify, ord)
	return f.derive(sql, f.schema, f.known), nil
}

// Unnest expands struct columns into one column per field.
func (f Frame) Unnest(columns ...string) Frame {
	if len(columns) == 0 {
		return f
	}
	if f.known {
		parts := make([]string, 0, len(f.schema))
		var schema Schema
		known := true
		for _, c := range f.schema {
			if !slices.Contains(columns, c.Name) {
				parts = append(parts, QuoteIdent(c.Name))
				schema = append(schema, c)
				continue
			}
			parts = append(parts, "unnest("+QuoteIdent(c.Name)+")")
			if c.Fields == nil {
				known = false
				continue
			}
			for _, field := range c.Fields {
				schema = append(schema, Column{Name: field, Kind: KindString})
			}
		}
		return f.derive("SELECT "+strings.Join(parts, ", ")+" FROM "+f.from(), schema, known)
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = "unnest(" + QuoteIdent(c) + ")"
	}
	return f.derive("SELECT * EXCLUDE ("+identList(columns)+"), "+strings.Join(parts, ", ")+" FROM "+f.from(), nil, false)
}

// Explode turns each list element into its own row. Several columns are
// exploded in lockstep. Rows with empty or null lists are dropped.
func (f Frame) Explode(columns ...string) Frame {
	if len(columns) == 0 {
		return f
	}
	if f.known {
		parts := make([]string, len(f.schema))
		schema := make(Schema, len(f.schema))
		for i, c := range f.schema {
			schema[i] = c
			if slices.Contains(columns, c.Name) {
				parts[i] = "unnest(" + QuoteIdent(c.Name) + ") AS " + QuoteIdent(c.Name)
				schema[i] = Column{Name: c.Name, Kind: c.Elem}
				continue
			}
			parts[i] = QuoteIdent(c.Name)
		}
		return f.derive("SELECT "+strings.Join(parts, ", ")+" FROM "+f.from(), schema, true)
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = "unnest(" + QuoteIdent(c) + ") AS " + QuoteIdent(c)
	}
	return f.derive("SELECT * REPLACE ("+strings.Join(parts, ", ")+") FROM "+f.from(), nil, false)
}

// Limit keeps at most n rows.
func (f Frame) Limit(n int) Frame {
	return f.derive(fmt.Sprintf("SELECT * FROM %s LIMIT %d", f.from(), n), f.schema, f.known)
}
