package frame

import (
	"fmt"
	"strings"
)

// TypedColumn pins a column to a type when reading a source.
type TypedColumn struct {
	Name string
	Type DataType
}

// CSVReadOptions configures ScanCSV.
type CSVReadOptions struct {
	// Separator is the field delimiter; empty means ",".
	Separator string
	// HasHeader reports whether the first row names the columns.
	HasHeader bool
	// Types overrides inferred types for some columns.
	Types []TypedColumn
}

// ScanCSV reads one or more CSV files with a shared layout. Short rows are
// padded with nulls.
func ScanCSV(paths []string, opts CSVReadOptions) Frame {
	sep := opts.Separator
	if sep == "" {
		sep = ","
	}
	args := []string{
		stringList(paths),
		fmt.Sprintf("header = %t", opts.HasHeader),
		"delim = " + QuoteString(sep),
		"null_padding = true",
	}
	if len(opts.Types) > 0 {
		args = append(args, "types = "+typeStruct(opts.Types))
	}
	return FromSQL("SELECT * FROM read_csv("+strings.Join(args, ", ")+")", nil)
}

// ScanJSON reads files holding a JSON array of objects. When columns is not
// empty it is the complete schema and only those columns are read.
func ScanJSON(paths []string, columns []TypedColumn) Frame {
	return scanJSON(paths, "array", columns)
}

// ScanNDJSON reads newline-delimited JSON. columns overrides inferred types
// of the named columns; other columns keep their inferred types.
func ScanNDJSON(paths []string, columns []TypedColumn) Frame {
	f := FromSQL("SELECT * FROM read_json("+stringList(paths)+", format = 'newline_delimited')", nil)
	return f.cast(columns)
}

func scanJSON(paths []string, format string, columns []TypedColumn) Frame {
	args := []string{stringList(paths), "format = " + QuoteString(format)}
	if len(columns) == 0 {
		return FromSQL("SELECT * FROM read_json("+strings.Join(args, ", ")+")", nil)
	}
	args = append(args, "columns = "+typeStruct(columns))
	return FromSQL("SELECT * FROM read_json("+strings.Join(args, ", ")+")", typedSchema(columns))
}

// ScanParquet reads parquet files. columns overrides stored types.
func ScanParquet(paths []string, columns []TypedColumn) Frame {
	return FromSQL("SELECT * FROM read_parquet("+stringList(paths)+")", nil).cast(columns)
}

// InlineColumn is a literal column of an inline table. Nil values are nulls.
type InlineColumn struct {
	Name   string
	Type   DataType
	Values []*string
}

// Inline builds a frame from literal values. Columns shorter than the
// longest one are padded with nulls.
func Inline(columns []InlineColumn) Frame {
	schema := make(Schema, len(columns))
	rows := 0
	for i, c := range columns {
		schema[i] = Column{Name: c.Name, Kind: c.Type.Kind}
		rows = max(rows, len(c.Values))
	}
	if rows == 0 {
		parts := make([]string, len(columns))
		for i, c := range columns {
			parts[i] = fmt.Sprintf("CAST(NULL AS %s) AS %s", c.Type.SQL, QuoteIdent(c.Name))
		}
		return FromSQL("SELECT "+strings.Join(parts, ", ")+" WHERE false", schema)
	}

	tuples := make([]string, rows)
	for r := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			value := "NULL"
			if r < len(c.Values) && c.Values[r] != nil {
				value = QuoteString(*c.Values[r])
			}
			cells[i] = fmt.Sprintf("CAST(%s AS %s)", value, c.Type.SQL)
		}
		tuples[r] = "(" + strings.Join(cells, ", ") + ")"
	}
	sql := fmt.Sprintf("SELECT * FROM (VALUES %s) AS t(%s)", strings.Join(tuples, ", "), identList(schema.Names()))
	return FromSQL(sql, schema)
}

// cast applies type overrides to existing columns.
func (f Frame) cast(columns []TypedColumn) Frame {
	if len(columns) == 0 {
		return f
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("CAST(%s AS %s) AS %s", QuoteIdent(c.Name), c.Type.SQL, QuoteIdent(c.Name))
	}
	return f.derive("SELECT * REPLACE ("+strings.Join(parts, ", ")+") FROM "+f.from(), f.schema, f.known)
}

func typeStruct(columns []TypedColumn) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = QuoteString(c.Name) + ": " + QuoteString(c.Type.SQL)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func typedSchema(columns []TypedColumn) Schema {
	schema := make(Schema, len(columns))
	for i, c := range columns {
		schema[i] = Column{Name: c.Name, Kind: c.Type.Kind}
	}
	return schema
}
