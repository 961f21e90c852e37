package frame

import (
	"strings"
)

// QuoteIdent quotes a column or table identifier for DuckDB.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdents(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = QuoteIdent(n)
	}
	return out
}

func quoteStrings(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = QuoteString(v)
	}
	return out
}

func identList(names []string) string {
	return strings.Join(quoteIdents(names), ", ")
}

// stringList renders a DuckDB list literal of strings: ['a', 'b'].
func stringList(values []string) string {
	return "[" + strings.Join(quoteStrings(values), ", ") + "]"
}
