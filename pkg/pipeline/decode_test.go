package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issuesDoc = `
source:
  csv:
    path: data/*.csv
    separator: ";"
    has_header: true
    schema:
      number: UInt64
      title: String
  transforms:
    - filter:
        col: state
        ops:
          - eq: {lit: open}
transforms:
  - select:
      - title
      - col: number
        ops:
          - alias: id
      - col: labels
        ops:
          - list: {filter: {element: ~, ops: [{contains: "^bug"}]}}
          - list: {join: ", "}
  - set:
      - col: title
        ops:
          - str: to_lowercase
          - str: {strip_chars: "#"}
  - extract:
      column: title
      pattern: '(?P<kind>\w+): (?P<rest>.*)'
      filter: true
  - sort_by:
      - id
      - {column: title, descending: true}
  - drop_duplicates:
      subset: id
      keep: first
  - join:
      right:
        json:
          path: milestones.json
      left_on: id
      right_on: [issue]
      how: left
  - rename:
      id: number
  - drop: [rest]
exports:
  - csv:
      folder: out
      name: issues
      date_format: "_%Y%m%d"
  - json_line: {folder: out, name: issues}
`

func TestParse_Document(t *testing.T) {
	doc, err := Parse([]byte(issuesDoc))
	require.NoError(t, err)

	yes := true
	assert.Equal(t, Loader{
		Source: CSVSource{
			Path:      "data/*.csv",
			Separator: ";",
			HasHeader: &yes,
			Schema:    Schema{{Name: "number", Type: "UInt64"}, {Name: "title", Type: "String"}},
		},
		Transforms: []Transform{
			Filter{Predicates: []Chain{{
				Expr: Column{Name: "state"},
				Ops:  []Operation{Compare{Op: OpEq, Value: Chain{Expr: Literal{Value: "open"}}}},
			}}},
		},
	}, doc.Source)

	require.Len(t, doc.Transforms, 8)

	sel := doc.Transforms[0].(Select)
	require.Len(t, sel.Columns, 3)
	assert.Equal(t, Chain{Expr: Column{Name: "title"}}, sel.Columns[0])
	assert.Equal(t, []Operation{Alias{Name: "id"}}, sel.Columns[1].Ops)

	pred := Chain{Expr: Element{}, Ops: []Operation{Contains{Pattern: "^bug"}}}
	assert.Equal(t, []Operation{
		List{Op: ListFilter, Predicate: &pred},
		List{Op: ListJoin, Separator: ", "},
	}, sel.Columns[2].Ops)

	hash := "#"
	assert.Equal(t, Set{Columns: []Chain{{
		Expr: Column{Name: "title"},
		Ops:  []Operation{Str{Op: StrToLowercase}, Str{Op: StrStripChars, Chars: &hash}},
	}}}, doc.Transforms[1])

	assert.Equal(t, Extract{Column: "title", Pattern: `(?P<kind>\w+): (?P<rest>.*)`, Filter: true}, doc.Transforms[2])
	assert.Equal(t, SortBy{Keys: []SortKey{{Column: "id"}, {Column: "title", Descending: true}}}, doc.Transforms[3])
	assert.Equal(t, DropDuplicates{Subset: []string{"id"}, Keep: KeepFirst}, doc.Transforms[4])
	assert.Equal(t, Join{
		Right:   Loader{Source: JSONSource{Path: "milestones.json"}},
		LeftOn:  []string{"id"},
		RightOn: []string{"issue"},
		How:     JoinLeft,
	}, doc.Transforms[5])
	assert.Equal(t, Rename{Columns: []RenameColumn{{From: "id", To: "number"}}}, doc.Transforms[6])
	assert.Equal(t, Drop{Columns: []Chain{{Expr: Column{Name: "rest"}}}}, doc.Transforms[7])

	assert.Equal(t, []Export{
		CSVExport{Destination: Destination{Folder: "out", Name: "issues", DateFormat: "_%Y%m%d"}},
		JSONLineExport{Destination: Destination{Folder: "out", Name: "issues"}},
	}, doc.Exports)
}

func TestParse_RenameForms(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Rename
	}{
		{
			name: "plain map",
			doc:  "{a: b, c: d}",
			want: Rename{Columns: []RenameColumn{{From: "a", To: "b"}, {From: "c", To: "d"}}},
		},
		{
			name: "tagged map",
			doc:  "{map: {a: b}}",
			want: Rename{Columns: []RenameColumn{{From: "a", To: "b"}}},
		},
		{
			name: "prefix",
			doc:  "{prefix: gh_}",
			want: Rename{Prefix: "gh_"},
		},
		{
			name: "column named prefix",
			doc:  "{map: {prefix: p}}",
			want: Rename{Columns: []RenameColumn{{From: "prefix", To: "p"}}},
		},
		{
			name: "column named map",
			doc:  "{map: m}",
			want: Rename{Columns: []RenameColumn{{From: "map", To: "m"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte("source: {csv: {path: a.csv}}\ntransforms:\n  - rename: " + tt.doc + "\n"))
			require.NoError(t, err)
			require.Len(t, doc.Transforms, 1)
			assert.Equal(t, tt.want, doc.Transforms[0])
		})
	}

	_, err := Parse([]byte("source: {csv: {path: a.csv}}\ntransforms:\n  - rename: {prefix: \"\"}\n"))
	var perr *ParseError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, KeyPath("transforms[0].rename.prefix"), perr.Path)
}

func TestParse_Defaults(t *testing.T) {
	doc, err := Parse([]byte(`
source:
  json_line: {path: a.jsonl}
transforms:
  - drop_duplicates: ~
  - join:
      right: {config: {path: other.yaml}}
      left_on: [a, b]
      right_on: [c, d]
  - with_columns: [x]
  - filter: {match: {column: title, pattern: "^Fix"}}
`))
	require.NoError(t, err)
	assert.Empty(t, doc.Exports)
	assert.Equal(t, DropDuplicates{Keep: KeepAny}, doc.Transforms[0])
	assert.Equal(t, JoinInner, doc.Transforms[1].(Join).How)
	assert.Equal(t, Set{Columns: []Chain{{Expr: Column{Name: "x"}}}}, doc.Transforms[2])
	assert.Equal(t, Filter{Predicates: []Chain{{Expr: Match{Column: "title", Pattern: "^Fix"}}}}, doc.Transforms[3])
}

func TestParse_Inline(t *testing.T) {
	doc, err := Parse([]byte(`
source:
  inline:
    columns:
      - {name: title, datatype: String, values: [Foo, ~, "3"]}
      - {name: number, datatype: UInt64, values: [1, 2, 3]}
`))
	require.NoError(t, err)

	s := func(v string) *string { return &v }
	assert.Equal(t, InlineSource{Columns: []InlineColumn{
		{Name: "title", DataType: "String", Values: []*string{s("Foo"), nil, s("3")}},
		{Name: "number", DataType: "UInt64", Values: []*string{s("1"), s("2"), s("3")}},
	}}, doc.Source.Source)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantPath KeyPath
		wantLine int
		wantMsg  string
	}{
		{
			name:    "empty document",
			doc:     "",
			wantMsg: "empty document",
		},
		{
			name:     "missing source",
			doc:      "transforms: []\n",
			wantLine: 1,
			wantMsg:  `missing required field "source"`,
		},
		{
			name:     "unknown top-level key",
			doc:      "source: {csv: {path: a.csv}}\nexport: []\n",
			wantPath: "export",
			wantLine: 2,
			wantMsg:  `unknown field "export"`,
		},
		{
			name: "typo deep inside join",
			doc: `source: {csv: {path: a.csv}}
transforms:
  - select: [a]
  - select: [a]
  - join:
      right:
        csv: {pth: b.csv}
      left_on: a
      right_on: a
`,
			wantPath: "transforms[2].join.right.csv",
			wantLine: 7,
			wantMsg:  `missing required field "path"`,
		},
		{
			name: "unknown key inside tagged object",
			doc: `source: {csv: {path: a.csv, delimiter: ";"}}
`,
			wantPath: "source.csv.delimiter",
			wantMsg:  `unknown field "delimiter"`,
		},
		{
			name:     "unknown source tag",
			doc:      "source: {excel: {path: a.xlsx}}\n",
			wantPath: "source.excel",
			wantMsg:  `unknown source "excel"`,
		},
		{
			name:     "two tags",
			doc:      "source: {csv: {path: a.csv}, json: {path: b.json}}\n",
			wantPath: "source",
			wantMsg:  "more than one tag",
		},
		{
			name:     "unknown operation",
			doc:      "source: {csv: {path: a.csv}}\ntransforms:\n  - select:\n      - {col: a, ops: [{lower: true}]}\n",
			wantPath: "transforms[0].select[0].ops[0].lower",
			wantMsg:  `unknown operation "lower"`,
		},
		{
			name:     "and needs two conditions",
			doc:      "source: {csv: {path: a.csv}}\ntransforms:\n  - filter: {and: [a]}\n",
			wantPath: "transforms[0].filter.and",
			wantMsg:  "needs at least 2 entries",
		},
		{
			name:     "bad keep",
			doc:      "source: {csv: {path: a.csv}}\ntransforms:\n  - drop_duplicates: {keep: sometimes}\n",
			wantPath: "transforms[0].drop_duplicates.keep",
			wantMsg:  `invalid value "sometimes"`,
		},
		{
			name:     "join key count mismatch",
			doc:      "source: {csv: {path: a.csv}}\ntransforms:\n  - join: {right: {csv: {path: b.csv}}, left_on: [a, b], right_on: a}\n",
			wantPath: "transforms[0].join",
			wantMsg:  "left_on has 2 keys but right_on has 1",
		},
		{
			name:     "is_null needs a boolean",
			doc:      "source: {csv: {path: a.csv}}\ntransforms:\n  - filter: {col: a, ops: [{is_null: maybe}]}\n",
			wantPath: "transforms[0].filter.ops[0].is_null",
			wantMsg:  "expected a boolean",
		},
		{
			name:     "multi-character separator",
			doc:      "source: {csv: {path: a.csv, separator: '::'}}\n",
			wantPath: "source.csv.separator",
			wantMsg:  "single character",
		},
		{
			name:     "duplicate key",
			doc:      "source: {csv: {path: a.csv}}\ntransforms:\n  - rename: {a: b, a: c}\n",
			wantPath: "transforms[0].rename.a",
			wantMsg:  `duplicate key "a"`,
		},
		{
			name:     "export without name",
			doc:      "source: {csv: {path: a.csv}}\nexports:\n  - parquet: {folder: out}\n",
			wantPath: "exports[0].parquet",
			wantMsg:  `missing required field "name"`,
		},
		{
			name:    "invalid yaml",
			doc:     "source: [unclosed\n",
			wantMsg: "yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantPath, perr.Path)
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, perr.Line)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: {csv: {path: a.csv}}\nbogus: 1\n"), 0o644))

	_, err := ParseFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path+":2:1: bogus: unknown field")

	_, err = ParseFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("source: {csv: {path: a.csv}}\n"), 0o644))
	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.File)
}

func TestParseFile_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[source.csv]
path = "data/*.csv"
separator = ";"
has_header = true

[source.csv.schema]
number = "UInt64"

[[transforms]]
drop = ["body"]

[[transforms]]
rename = { title = "name" }

[[exports]]
csv = { folder = "out", name = "issues" }
`), 0o644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.File)
	yes := true
	assert.Equal(t, CSVSource{
		Path:      "data/*.csv",
		Separator: ";",
		HasHeader: &yes,
		Schema:    Schema{{Name: "number", Type: "UInt64"}},
	}, doc.Source.Source)
	require.Len(t, doc.Transforms, 2)
	assert.Equal(t, Drop{Columns: []Chain{{Expr: Column{Name: "body"}}}}, doc.Transforms[0])
	assert.Equal(t, Rename{Columns: []RenameColumn{{From: "title", To: "name"}}}, doc.Transforms[1])
	require.Len(t, doc.Exports, 1)

	t.Run("unknown field", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.toml")
		require.NoError(t, os.WriteFile(bad, []byte("bogus = 1\n[source.csv]\npath = \"a.csv\"\n"), 0o644))
		_, err := ParseFile(bad)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParse)
		assert.Contains(t, err.Error(), "bogus: unknown field")
	})

	t.Run("syntax error", func(t *testing.T) {
		bad := filepath.Join(dir, "syntax.toml")
		require.NoError(t, os.WriteFile(bad, []byte("[source\n"), 0o644))
		_, err := ParseFile(bad)
		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, 1, perr.Line)
	})
}

func TestKeyPath(t *testing.T) {
	p := KeyPath("").Key("transforms").Index(2).Key("join").Key("right")
	assert.Equal(t, "transforms[2].join.right", p.String())
}
