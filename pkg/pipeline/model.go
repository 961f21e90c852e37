// Package pipeline is the typed model of a pipeline document.
//
// A document names one source (with its own transforms), an ordered list of
// transforms applied to it, and the exports written from the result. Tagged
// unions in the document map to small interfaces implemented by value types;
// the variant sets are closed.
package pipeline

// Document is a parsed pipeline document. It is not modified after parsing.
type Document struct {
	Source     Loader
	Transforms []Transform
	Exports    []Export

	// File is the path the document was read from, empty for in-memory input.
	File string
}

// Loader is a source plus the transforms applied right after loading it.
type Loader struct {
	Source     Source
	Transforms []Transform
}

// Source is one of CSVSource, JSONSource, JSONLineSource, ParquetSource,
// ConfigSource or InlineSource.
type Source interface {
	SourceTag() string
}

// SchemaField pins one column to a data type name.
type SchemaField struct {
	Name string
	Type string
}

// Schema is an ordered column to type mapping.
type Schema []SchemaField

// CSVSource reads delimited text files.
type CSVSource struct {
	Path      string
	Schema    Schema
	Separator string
	// HasHeader defaults to true when nil.
	HasHeader *bool
}

// JSONSource reads files holding a JSON array of objects. A schema, when
// given, is the complete column list.
type JSONSource struct {
	Path   string
	Schema Schema
}

// JSONLineSource reads newline-delimited JSON. Its schema overrides the
// types of the named columns.
type JSONLineSource struct {
	Path   string
	Schema Schema
}

// ParquetSource reads parquet files.
type ParquetSource struct {
	Path   string
	Schema Schema
}

// ConfigSource loads another pipeline document and uses its result, without
// its exports, as the source.
type ConfigSource struct {
	Path string
}

// InlineSource is a literal table.
type InlineSource struct {
	Columns []InlineColumn
}

// InlineColumn is one literal column. Nil entries are nulls.
type InlineColumn struct {
	Name     string
	DataType string
	Values   []*string
}

func (CSVSource) SourceTag() string      { return "csv" }
func (JSONSource) SourceTag() string     { return "json" }
func (JSONLineSource) SourceTag() string { return "json_line" }
func (ParquetSource) SourceTag() string  { return "parquet" }
func (ConfigSource) SourceTag() string   { return "config" }
func (InlineSource) SourceTag() string   { return "inline" }

// Transform is one table-level step.
type Transform interface {
	TransformTag() string
}

// Select keeps only the given expressions.
type Select struct{ Columns []Chain }

// Drop removes columns. Each chain must be a bare column reference.
type Drop struct{ Columns []Chain }

// Rename renames columns by an explicit mapping, or prepends Prefix to
// every column name when Prefix is set.
type Rename struct {
	Columns []RenameColumn
	Prefix  string
}

// RenameColumn maps an existing column to a new name.
type RenameColumn struct {
	From string
	To   string
}

// Filter keeps rows for which every predicate holds.
type Filter struct{ Predicates []Chain }

// Extract adds one column per capture group of Pattern matched against
// Column. With Filter set, non-matching rows are dropped first.
type Extract struct {
	Column  string
	Pattern string
	Filter  bool
}

// Unnest expands struct columns into their fields.
type Unnest struct{ Columns []string }

// Explode turns list elements into rows.
type Explode struct{ Columns []string }

// SortBy orders rows by several keys.
type SortBy struct{ Keys []SortKey }

// SortKey is one sort column.
type SortKey struct {
	Column     string
	Descending bool
}

// Keep is the drop_duplicates survivor policy.
type Keep string

// Keep policies.
const (
	KeepFirst Keep = "first"
	KeepLast  Keep = "last"
	KeepAny   Keep = "any"
	KeepNone  Keep = "none"
)

// DropDuplicates removes duplicate rows over Subset, or all columns.
type DropDuplicates struct {
	Subset []string
	Keep   Keep
}

// JoinHow is the join type.
type JoinHow string

// Join types.
const (
	JoinInner JoinHow = "inner"
	JoinLeft  JoinHow = "left"
	JoinRight JoinHow = "right"
	JoinFull  JoinHow = "full"
	JoinSemi  JoinHow = "semi"
	JoinAnti  JoinHow = "anti"
)

// Join joins the current table with Right.
type Join struct {
	Right   Loader
	LeftOn  []string
	RightOn []string
	How     JoinHow
}

// Set adds or replaces columns.
type Set struct{ Columns []Chain }

func (Select) TransformTag() string         { return "select" }
func (Drop) TransformTag() string           { return "drop" }
func (Rename) TransformTag() string         { return "rename" }
func (Filter) TransformTag() string         { return "filter" }
func (Extract) TransformTag() string        { return "extract" }
func (Unnest) TransformTag() string         { return "unnest" }
func (Explode) TransformTag() string        { return "explode" }
func (SortBy) TransformTag() string         { return "sort_by" }
func (DropDuplicates) TransformTag() string { return "drop_duplicates" }
func (Join) TransformTag() string           { return "join" }
func (Set) TransformTag() string            { return "set" }

// Chain is a base expression followed by operations applied left to right.
type Chain struct {
	Expr Expression
	Ops  []Operation
}

// Expression is the base of a chain.
type Expression interface {
	ExpressionTag() string
}

// Column references a column. An empty name refers to the current list
// element inside a list filter.
type Column struct{ Name string }

// Literal is a scalar literal.
type Literal struct{ Value string }

// Match is true where Column matches Pattern.
type Match struct {
	Column  string
	Pattern string
}

// And holds when every condition holds.
type And struct{ Conditions []Chain }

// Or holds when any condition holds.
type Or struct{ Conditions []Chain }

// Not negates its operand.
type Not struct{ Operand Chain }

// Null is the null literal.
type Null struct{}

// Element is the current list element inside a list filter.
type Element struct{}

func (Column) ExpressionTag() string  { return "col" }
func (Literal) ExpressionTag() string { return "lit" }
func (Match) ExpressionTag() string   { return "match" }
func (And) ExpressionTag() string     { return "and" }
func (Or) ExpressionTag() string      { return "or" }
func (Not) ExpressionTag() string     { return "not" }
func (Null) ExpressionTag() string    { return "null" }
func (Element) ExpressionTag() string { return "element" }

// Operation is one step of a chain.
type Operation interface {
	OperationTag() string
}

// Alias names the output column.
type Alias struct{ Name string }

// ExtractGroups turns regex capture groups into struct fields.
type ExtractGroups struct{ Pattern string }

// Contains tests a string against a regex.
type Contains struct{ Pattern string }

// IsNull is true where the value is null (Null set) or present (Null unset).
type IsNull struct{ Null bool }

// FillNull replaces nulls with Value.
type FillNull struct{ Value Chain }

// CompareOp names a comparison.
type CompareOp string

// Comparisons.
const (
	OpEq   CompareOp = "eq"
	OpNeq  CompareOp = "neq"
	OpGt   CompareOp = "gt"
	OpLt   CompareOp = "lt"
	OpGtEq CompareOp = "gt_eq"
	OpLtEq CompareOp = "lt_eq"
)

// Compare compares the running value with Value.
type Compare struct {
	Op    CompareOp
	Value Chain
}

// AndWith combines the running value with every condition using AND.
type AndWith struct{ Conditions []Chain }

// OrWith combines the running value with every condition using OR.
type OrWith struct{ Conditions []Chain }

// StrOp names a string operation.
type StrOp string

// String operations.
const (
	StrToLowercase StrOp = "to_lowercase"
	StrToUppercase StrOp = "to_uppercase"
	StrLen         StrOp = "len"
	StrStripChars  StrOp = "strip_chars"
)

// Str applies a string operation. Chars is only used by strip_chars; nil
// strips whitespace.
type Str struct {
	Op    StrOp
	Chars *string
}

// ListOp names a list operation.
type ListOp string

// List operations.
const (
	ListFirst  ListOp = "first"
	ListLen    ListOp = "len"
	ListJoin   ListOp = "join"
	ListFilter ListOp = "filter"
)

// List applies a list operation. Separator is used by join, Predicate by
// filter.
type List struct {
	Op        ListOp
	Separator string
	Predicate *Chain
}

// Field extracts a struct field.
type Field struct{ Name string }

func (Alias) OperationTag() string         { return "alias" }
func (ExtractGroups) OperationTag() string { return "extract_groups" }
func (Contains) OperationTag() string      { return "contains" }
func (IsNull) OperationTag() string        { return "is_null" }
func (FillNull) OperationTag() string      { return "fill_null" }
func (c Compare) OperationTag() string     { return string(c.Op) }
func (AndWith) OperationTag() string       { return "and" }
func (OrWith) OperationTag() string        { return "or" }
func (Str) OperationTag() string           { return "str" }
func (List) OperationTag() string          { return "list" }
func (Field) OperationTag() string         { return "field" }

// Export is one of CSVExport, JSONExport, JSONLineExport or ParquetExport.
type Export interface {
	ExportTag() string
	Target() Destination
}

// Destination names an output file: Folder/Name + strftime(DateFormat) + extension.
type Destination struct {
	Folder     string
	Name       string
	DateFormat string
}

// CSVExport writes CSV.
type CSVExport struct {
	Destination
	Separator string
	// Header defaults to true when nil.
	Header *bool
}

// JSONExport writes a JSON array.
type JSONExport struct{ Destination }

// JSONLineExport writes newline-delimited JSON.
type JSONLineExport struct{ Destination }

// ParquetExport writes parquet.
type ParquetExport struct{ Destination }

func (CSVExport) ExportTag() string      { return "csv" }
func (JSONExport) ExportTag() string     { return "json" }
func (JSONLineExport) ExportTag() string { return "json_line" }
func (ParquetExport) ExportTag() string  { return "parquet" }

// Target returns the output location.
func (d Destination) Target() Destination { return d }
