package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpr_SQL(t *testing.T) {
	title := ColumnRef(Column{Name: "title", Kind: KindString})
	tags := ColumnRef(Column{Name: "tags", Kind: KindList, Elem: KindString})

	tests := []struct {
		name     string
		expr     Expr
		wantSQL  string
		wantName string
		wantKind Kind
	}{
		{
			name:     "column",
			expr:     Col(`we"ird`),
			wantSQL:  `"we""ird"`,
			wantName: `we"ird`,
		},
		{
			name:     "literal",
			expr:     Lit("it's"),
			wantSQL:  `'it''s'`,
			wantName: LiteralName,
		},
		{
			name:     "null",
			expr:     Null(),
			wantSQL:  "NULL",
			wantName: LiteralName,
			wantKind: KindNull,
		},
		{
			name:     "alias keeps sql",
			expr:     title.Alias("name"),
			wantSQL:  `"title"`,
			wantName: "name",
			wantKind: KindString,
		},
		{
			name:     "comparison keeps left name",
			expr:     Col("n").Compare(OpGtEq, Lit("3")),
			wantSQL:  `("n" >= '3')`,
			wantName: "n",
			wantKind: KindBool,
		},
		{
			name:     "boolean connectives",
			expr:     Col("a").IsNull().Or(Col("b").IsNotNull().Not()),
			wantSQL:  `(("a" IS NULL) OR (NOT ("b" IS NOT NULL)))`,
			wantName: "a",
			wantKind: KindBool,
		},
		{
			name:     "fill null takes known kind",
			expr:     Col("x").FillNull(title),
			wantSQL:  `coalesce("x", "title")`,
			wantName: "x",
			wantKind: KindString,
		},
		{
			name:     "contains",
			expr:     title.Contains(`^\d+$`),
			wantSQL:  `regexp_matches("title", '^\d+$')`,
			wantName: "title",
			wantKind: KindBool,
		},
		{
			name:     "contains casts values not known to be strings",
			expr:     ColumnRef(Column{Name: "n", Kind: KindNumeric}).Contains(`^5$`),
			wantSQL:  `regexp_matches(CAST("n" AS VARCHAR), '^5$')`,
			wantName: "n",
			wantKind: KindBool,
		},
		{
			name:     "extract group of an untyped column",
			expr:     Col("raw").ExtractGroup(`(\d+)`, 1, "num"),
			wantSQL:  `CASE WHEN regexp_matches(CAST("raw" AS VARCHAR), '(\d+)') THEN regexp_extract(CAST("raw" AS VARCHAR), '(\d+)', 1) END`,
			wantName: "num",
			wantKind: KindString,
		},
		{
			name:     "extract groups",
			expr:     title.ExtractGroups(`(\d+)-(\d+)`, []string{"year", "1"}),
			wantSQL:  `CASE WHEN regexp_matches("title", '(\d+)-(\d+)') THEN struct_pack("year" := regexp_extract("title", '(\d+)-(\d+)', 1), "1" := regexp_extract("title", '(\d+)-(\d+)', 2)) END`,
			wantName: "title",
			wantKind: KindStruct,
		},
		{
			name:     "strip custom chars",
			expr:     title.StripCharsOf("#"),
			wantSQL:  `trim("title", '#')`,
			wantName: "title",
			wantKind: KindString,
		},
		{
			name:     "list first",
			expr:     tags.ListFirst(),
			wantSQL:  `list_extract("tags", 1)`,
			wantName: "tags",
			wantKind: KindString,
		},
		{
			name:     "list join",
			expr:     tags.ListJoin(", "),
			wantSQL:  `array_to_string("tags", ', ')`,
			wantName: "tags",
			wantKind: KindString,
		},
		{
			name:     "list filter",
			expr:     tags.ListFilter(Element(KindString).Eq(Lit("bug"))),
			wantSQL:  `list_filter("tags", __elem -> (__elem = 'bug'))`,
			wantName: "tags",
			wantKind: KindList,
		},
		{
			name:     "struct field",
			expr:     Col("parts").Field("year"),
			wantSQL:  `struct_extract("parts", 'year')`,
			wantName: "year",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSQL, tt.expr.SQL())
			assert.Equal(t, tt.wantName, tt.expr.Name())
			assert.Equal(t, tt.wantKind, tt.expr.Kind())
		})
	}
}

func TestExpr_FieldOfExtractedGroups(t *testing.T) {
	parts := Col("date").ExtractGroups(`(\d+)`, []string{"year"})
	assert.Equal(t, []string{"year"}, parts.Fields())
	assert.Equal(t, KindString, parts.Field("year").Kind())
}

func TestKind_Compatible(t *testing.T) {
	assert.True(t, KindString.Compatible(KindString))
	assert.True(t, KindUnknown.Compatible(KindBool))
	assert.True(t, KindNull.Compatible(KindNumeric))
	assert.False(t, KindNumeric.Compatible(KindString))
	assert.Equal(t, "temporal", KindTemporal.String())
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    DataType
		wantErr bool
	}{
		{in: "String", want: DataType{SQL: "VARCHAR", Kind: KindString}},
		{in: "Int64", want: DataType{SQL: "BIGINT", Kind: KindNumeric}},
		{in: "UInt64", want: DataType{SQL: "UBIGINT", Kind: KindNumeric}},
		{in: "Datetime", want: DataType{SQL: "TIMESTAMP", Kind: KindTemporal}},
		{in: "List[String]", want: DataType{SQL: "VARCHAR[]", Kind: KindList}},
		{in: "decimal(10, 2)", want: DataType{SQL: "DECIMAL(10, 2)", Kind: KindNumeric}},
		{in: "INTEGER[]", want: DataType{SQL: "INTEGER[]", Kind: KindList}},
		{in: "", wantErr: true},
		{in: "Categorical", wantErr: true},
		{in: "VARCHAR); DROP TABLE x; --", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
