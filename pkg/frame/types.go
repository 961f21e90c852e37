package frame

import (
	"fmt"
	"regexp"
	"strings"
)

// columnTypes maps the dtype names accepted in pipeline schemas to DuckDB types.
var columnTypes = map[string]string{
	"string":   "VARCHAR",
	"str":      "VARCHAR",
	"utf8":     "VARCHAR",
	"boolean":  "BOOLEAN",
	"bool":     "BOOLEAN",
	"int8":     "TINYINT",
	"int16":    "SMALLINT",
	"int32":    "INTEGER",
	"int64":    "BIGINT",
	"uint8":    "UTINYINT",
	"uint16":   "USMALLINT",
	"uint32":   "UINTEGER",
	"uint64":   "UBIGINT",
	"float32":  "FLOAT",
	"float64":  "DOUBLE",
	"date":     "DATE",
	"datetime": "TIMESTAMP",
	"time":     "TIME",
	"duration": "INTERVAL",
	"null":     "VARCHAR",
}

var rawType = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ]*(\([0-9, ]+\))?(\[\])*$`)

// DataType is a resolved column type.
type DataType struct {
	// SQL is the DuckDB type used in casts.
	SQL  string
	Kind Kind
}

// ParseType resolves a schema dtype name. Short names ("Int64", "String",
// "Datetime") are matched case-insensitively; anything else must be a plain
// DuckDB type name such as "DECIMAL(10, 2)" or "VARCHAR[]".
func ParseType(name string) (DataType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return DataType{}, fmt.Errorf("empty data type")
	}
	if sqlType, ok := columnTypes[key]; ok {
		return DataType{SQL: sqlType, Kind: kindOfSQLType(sqlType)}, nil
	}
	if strings.HasPrefix(key, "list[") && strings.HasSuffix(key, "]") {
		inner, err := ParseType(name[5 : len(name)-1])
		if err != nil {
			return DataType{}, err
		}
		return DataType{SQL: inner.SQL + "[]", Kind: KindList}, nil
	}
	if !rawType.MatchString(strings.TrimSpace(name)) {
		return DataType{}, fmt.Errorf("unsupported data type %q", name)
	}
	sqlType := strings.ToUpper(strings.TrimSpace(name))
	kind := kindOfSQLType(sqlType)
	if kind == KindUnknown {
		return DataType{}, fmt.Errorf("unsupported data type %q", name)
	}
	return DataType{SQL: sqlType, Kind: kind}, nil
}
