// Package frame is the lazy table abstraction that compiled pipelines target.
//
// A Frame is an immutable description of a relation expressed as DuckDB SQL.
// Operators return a new Frame wrapping the previous one as a subquery; no
// data is read until a Session sinks or collects the frame.
package frame

import "strings"

// Kind is the coarse type class of a column or expression. The compiler uses
// it for static checks; KindUnknown disables checks.
type Kind int

// Kind values.
const (
	KindUnknown Kind = iota
	KindNull
	KindBool
	KindString
	KindNumeric
	KindTemporal
	KindList
	KindStruct
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindNull:     "null",
	KindBool:     "bool",
	KindString:   "string",
	KindNumeric:  "numeric",
	KindTemporal: "temporal",
	KindList:     "list",
	KindStruct:   "struct",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Known reports whether k carries type information.
func (k Kind) Known() bool {
	return k != KindUnknown && k != KindNull
}

// Compatible reports whether a value of kind k can be used where want is
// expected. Unknown and null kinds are compatible with everything.
func (k Kind) Compatible(want Kind) bool {
	return !k.Known() || !want.Known() || k == want
}

// kindOfSQLType classifies a DuckDB type name.
func kindOfSQLType(sqlType string) Kind {
	t := strings.ToUpper(strings.TrimSpace(sqlType))
	switch {
	case strings.HasSuffix(t, "[]") || strings.HasPrefix(t, "LIST"):
		return KindList
	case strings.HasPrefix(t, "STRUCT"):
		return KindStruct
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "VARCHAR", "TEXT", "STRING", "CHAR", "BPCHAR", "UUID":
		return KindString
	case "BOOLEAN", "BOOL", "LOGICAL":
		return KindBool
	case "TINYINT", "SMALLINT", "INTEGER", "INT", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT",
		"INT1", "INT2", "INT4", "INT8", "FLOAT", "REAL", "DOUBLE", "DECIMAL", "NUMERIC":
		return KindNumeric
	case "DATE", "TIME", "TIMESTAMP", "TIMESTAMPTZ", "DATETIME", "INTERVAL",
		"TIMESTAMP WITH TIME ZONE", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS":
		return KindTemporal
	}
	return KindUnknown
}
