package pipeline

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Marshal renders doc as canonical YAML. Parsing the output yields a
// document equal to doc, apart from File.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(encodeDocument(doc)); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func boolNode(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

type pair struct {
	key   string
	value *yaml.Node
}

// object builds a mapping, skipping pairs with a nil value.
func object(pairs ...pair) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range pairs {
		if p.value == nil {
			continue
		}
		n.Content = append(n.Content, scalar(p.key), p.value)
	}
	return n
}

func list(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

func stringList(values []string) *yaml.Node {
	n := list()
	n.Style = yaml.FlowStyle
	for _, v := range values {
		n.Content = append(n.Content, scalar(v))
	}
	return n
}

func optional(s string) *yaml.Node {
	if s == "" {
		return nil
	}
	return scalar(s)
}

func optionalBool(b *bool) *yaml.Node {
	if b == nil {
		return nil
	}
	return boolNode(*b)
}

func encodeDocument(doc *Document) *yaml.Node {
	pairs := []pair{{"source", encodeLoader(doc.Source)}}
	if len(doc.Transforms) > 0 {
		pairs = append(pairs, pair{"transforms", encodeTransforms(doc.Transforms)})
	}
	if len(doc.Exports) > 0 {
		exports := list()
		for _, e := range doc.Exports {
			exports.Content = append(exports.Content, encodeExport(e))
		}
		pairs = append(pairs, pair{"exports", exports})
	}
	return object(pairs...)
}

func encodeLoader(l Loader) *yaml.Node {
	n := object(pair{l.Source.SourceTag(), encodeSource(l.Source)})
	if len(l.Transforms) > 0 {
		n.Content = append(n.Content, scalar("transforms"), encodeTransforms(l.Transforms))
	}
	return n
}

func encodeSchema(s Schema) *yaml.Node {
	if len(s) == 0 {
		return nil
	}
	n := object()
	for _, f := range s {
		n.Content = append(n.Content, scalar(f.Name), scalar(f.Type))
	}
	return n
}

func encodeSource(src Source) *yaml.Node {
	switch s := src.(type) {
	case CSVSource:
		var sep *yaml.Node
		if s.Separator != "" {
			sep = scalar(s.Separator)
		}
		return object(
			pair{"path", scalar(s.Path)},
			pair{"schema", encodeSchema(s.Schema)},
			pair{"separator", sep},
			pair{"has_header", optionalBool(s.HasHeader)},
		)
	case JSONSource:
		return object(pair{"path", scalar(s.Path)}, pair{"schema", encodeSchema(s.Schema)})
	case JSONLineSource:
		return object(pair{"path", scalar(s.Path)}, pair{"schema", encodeSchema(s.Schema)})
	case ParquetSource:
		return object(pair{"path", scalar(s.Path)}, pair{"schema", encodeSchema(s.Schema)})
	case ConfigSource:
		return object(pair{"path", scalar(s.Path)})
	case InlineSource:
		cols := list()
		for _, c := range s.Columns {
			values := list()
			values.Style = yaml.FlowStyle
			for _, v := range c.Values {
				if v == nil {
					values.Content = append(values.Content, nullNode())
					continue
				}
				values.Content = append(values.Content, scalar(*v))
			}
			cols.Content = append(cols.Content, object(
				pair{"name", scalar(c.Name)},
				pair{"datatype", scalar(c.DataType)},
				pair{"values", values},
			))
		}
		return object(pair{"columns", cols})
	}
	panic(fmt.Sprintf("pipeline: unhandled source %T", src))
}

func encodeTransforms(ts []Transform) *yaml.Node {
	n := list()
	for _, t := range ts {
		n.Content = append(n.Content, object(pair{t.TransformTag(), encodeTransform(t)}))
	}
	return n
}

func encodeTransform(t Transform) *yaml.Node {
	switch t := t.(type) {
	case Select:
		return encodeChains(t.Columns)
	case Drop:
		return encodeChains(t.Columns)
	case Set:
		return encodeChains(t.Columns)
	case Filter:
		return encodeChains(t.Predicates)
	case Rename:
		if t.Prefix != "" {
			return object(pair{"prefix", scalar(t.Prefix)})
		}
		n := object()
		for _, c := range t.Columns {
			n.Content = append(n.Content, scalar(c.From), scalar(c.To))
		}
		if len(t.Columns) == 1 && (t.Columns[0].From == "map" || t.Columns[0].From == "prefix") {
			return object(pair{"map", n})
		}
		return n
	case Extract:
		var filter *yaml.Node
		if t.Filter {
			filter = boolNode(true)
		}
		return object(
			pair{"column", scalar(t.Column)},
			pair{"pattern", scalar(t.Pattern)},
			pair{"filter", filter},
		)
	case Unnest:
		return stringList(t.Columns)
	case Explode:
		return stringList(t.Columns)
	case SortBy:
		n := list()
		for _, k := range t.Keys {
			if !k.Descending {
				n.Content = append(n.Content, scalar(k.Column))
				continue
			}
			n.Content = append(n.Content, object(pair{"column", scalar(k.Column)}, pair{"descending", boolNode(true)}))
		}
		return n
	case DropDuplicates:
		var subset *yaml.Node
		if len(t.Subset) > 0 {
			subset = stringList(t.Subset)
		}
		return object(pair{"subset", subset}, pair{"keep", scalar(string(t.Keep))})
	case Join:
		return object(
			pair{"right", encodeLoader(t.Right)},
			pair{"left_on", stringList(t.LeftOn)},
			pair{"right_on", stringList(t.RightOn)},
			pair{"how", scalar(string(t.How))},
		)
	}
	panic(fmt.Sprintf("pipeline: unhandled transform %T", t))
}

func encodeChains(cs []Chain) *yaml.Node {
	n := list()
	for _, c := range cs {
		n.Content = append(n.Content, encodeChain(c))
	}
	return n
}

func encodeChain(c Chain) *yaml.Node {
	if col, ok := c.Expr.(Column); ok && len(c.Ops) == 0 {
		return scalar(col.Name)
	}
	n := object(pair{c.Expr.ExpressionTag(), encodeExpression(c.Expr)})
	if len(c.Ops) > 0 {
		ops := list()
		for _, op := range c.Ops {
			ops.Content = append(ops.Content, object(pair{op.OperationTag(), encodeOperation(op)}))
		}
		n.Content = append(n.Content, scalar("ops"), ops)
	}
	return n
}

func encodeExpression(e Expression) *yaml.Node {
	switch e := e.(type) {
	case Column:
		return scalar(e.Name)
	case Literal:
		return scalar(e.Value)
	case Match:
		return object(pair{"column", scalar(e.Column)}, pair{"pattern", scalar(e.Pattern)})
	case And:
		return encodeChains(e.Conditions)
	case Or:
		return encodeChains(e.Conditions)
	case Not:
		return encodeChain(e.Operand)
	case Null, Element:
		return nullNode()
	}
	panic(fmt.Sprintf("pipeline: unhandled expression %T", e))
}

func encodeOperation(op Operation) *yaml.Node {
	switch op := op.(type) {
	case Alias:
		return scalar(op.Name)
	case ExtractGroups:
		return scalar(op.Pattern)
	case Contains:
		return scalar(op.Pattern)
	case IsNull:
		return boolNode(op.Null)
	case FillNull:
		return encodeChain(op.Value)
	case Compare:
		return encodeChain(op.Value)
	case AndWith:
		return encodeChains(op.Conditions)
	case OrWith:
		return encodeChains(op.Conditions)
	case Str:
		if op.Chars != nil {
			return object(pair{string(StrStripChars), scalar(*op.Chars)})
		}
		return scalar(string(op.Op))
	case List:
		switch op.Op {
		case ListJoin:
			return object(pair{string(ListJoin), scalar(op.Separator)})
		case ListFilter:
			return object(pair{string(ListFilter), encodeChain(*op.Predicate)})
		}
		return scalar(string(op.Op))
	case Field:
		return scalar(op.Name)
	}
	panic(fmt.Sprintf("pipeline: unhandled operation %T", op))
}

func encodeExport(e Export) *yaml.Node {
	d := e.Target()
	pairs := []pair{
		{"folder", scalar(d.Folder)},
		{"name", scalar(d.Name)},
		{"date_format", optional(d.DateFormat)},
	}
	if csv, ok := e.(CSVExport); ok {
		pairs = append(pairs, pair{"separator", optional(csv.Separator)}, pair{"header", optionalBool(csv.Header)})
	}
	return object(pair{e.ExportTag(), object(pairs...)})
}
