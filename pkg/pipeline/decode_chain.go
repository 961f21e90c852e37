package pipeline

import (
	"gopkg.in/yaml.v3"
)

var (
	expressionTags = []string{"col", "lit", "match", "and", "or", "not", "null", "element"}
	operationTags  = []string{
		"alias", "extract_groups", "contains", "is_null", "fill_null",
		"eq", "neq", "gt", "lt", "gt_eq", "lt_eq", "and", "or", "str", "list", "field",
	}
)

// chains decodes a list holding at least atLeast chains.
func (d *decoder) chains(n *yaml.Node, path KeyPath, atLeast int) ([]Chain, error) {
	items, err := d.seq(n, path)
	if err != nil {
		return nil, err
	}
	if len(items) < atLeast {
		return nil, d.fail(resolve(n), path, "needs at least %d entries, got %d", atLeast, len(items))
	}
	var out []Chain
	for i, item := range items {
		c, err := d.chain(item, path.Index(i))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// chain decodes an expression chain. A bare string is a column reference.
func (d *decoder) chain(n *yaml.Node, path KeyPath) (Chain, error) {
	n = resolve(n)
	if n != nil && n.Kind == yaml.ScalarNode && !isNull(n) {
		return Chain{Expr: Column{Name: n.Value}}, nil
	}
	m, tag, v, err := d.tagged(n, path, "expression", expressionTags, "ops")
	if err != nil {
		return Chain{}, err
	}
	var c Chain
	if c.Expr, err = d.expression(tag, v, path.Key(tag)); err != nil {
		return Chain{}, err
	}
	if ov, ok := m.take("ops"); ok {
		opsPath := path.Key("ops")
		items, err := d.seq(ov, opsPath)
		if err != nil {
			return Chain{}, err
		}
		for i, item := range items {
			op, err := d.operation(item, opsPath.Index(i))
			if err != nil {
				return Chain{}, err
			}
			c.Ops = append(c.Ops, op)
		}
	}
	return c, m.finish()
}

func (d *decoder) expression(tag string, n *yaml.Node, path KeyPath) (Expression, error) {
	switch tag {
	case "col":
		name, err := d.str(n, path)
		return Column{Name: name}, err
	case "lit":
		value, err := d.str(n, path)
		return Literal{Value: value}, err
	case "match":
		m, err := d.mapping(n, path, "match")
		if err != nil {
			return nil, err
		}
		var e Match
		cv, err := m.require("column")
		if err != nil {
			return nil, err
		}
		if e.Column, err = d.nonEmpty(cv, path.Key("column")); err != nil {
			return nil, err
		}
		pv, err := m.require("pattern")
		if err != nil {
			return nil, err
		}
		if e.Pattern, err = d.nonEmpty(pv, path.Key("pattern")); err != nil {
			return nil, err
		}
		return e, m.finish()
	case "and":
		conds, err := d.chains(n, path, 2)
		return And{Conditions: conds}, err
	case "or":
		conds, err := d.chains(n, path, 2)
		return Or{Conditions: conds}, err
	case "not":
		operand, err := d.chain(n, path)
		return Not{Operand: operand}, err
	case "null", "element":
		if err := d.unit(n, path); err != nil {
			return nil, err
		}
		if tag == "null" {
			return Null{}, nil
		}
		return Element{}, nil
	}
	return nil, d.fail(n, path, "unsupported expression %q", tag)
}

// unit accepts the placeholder values of argument-less tags: null, true or {}.
func (d *decoder) unit(n *yaml.Node, path KeyPath) error {
	n = resolve(n)
	switch {
	case isNull(n):
		return nil
	case n.Kind == yaml.ScalarNode && n.Value == "true":
		return nil
	case n.Kind == yaml.MappingNode && len(n.Content) == 0:
		return nil
	}
	return d.fail(n, path, "takes no arguments")
}

func (d *decoder) operation(n *yaml.Node, path KeyPath) (Operation, error) {
	m, tag, v, err := d.tagged(n, path, "operation", operationTags)
	if err != nil {
		return nil, err
	}
	if err := m.finish(); err != nil {
		return nil, err
	}
	path = path.Key(tag)

	switch tag {
	case "alias":
		name, err := d.nonEmpty(v, path)
		return Alias{Name: name}, err
	case "extract_groups":
		p, err := d.nonEmpty(v, path)
		return ExtractGroups{Pattern: p}, err
	case "contains":
		p, err := d.nonEmpty(v, path)
		return Contains{Pattern: p}, err
	case "is_null":
		b, err := d.boolean(v, path)
		return IsNull{Null: b}, err
	case "fill_null":
		c, err := d.chain(v, path)
		return FillNull{Value: c}, err
	case "eq", "neq", "gt", "lt", "gt_eq", "lt_eq":
		c, err := d.chain(v, path)
		return Compare{Op: CompareOp(tag), Value: c}, err
	case "and":
		conds, err := d.chains(v, path, 1)
		return AndWith{Conditions: conds}, err
	case "or":
		conds, err := d.chains(v, path, 1)
		return OrWith{Conditions: conds}, err
	case "str":
		return d.strOp(v, path)
	case "list":
		return d.listOp(v, path)
	case "field":
		name, err := d.nonEmpty(v, path)
		return Field{Name: name}, err
	}
	return nil, d.fail(n, path, "unsupported operation %q", tag)
}

func (d *decoder) strOp(n *yaml.Node, path KeyPath) (Operation, error) {
	n = resolve(n)
	if n != nil && n.Kind == yaml.MappingNode {
		m, tag, v, err := d.tagged(n, path, "string operation", []string{string(StrStripChars)})
		if err != nil {
			return nil, err
		}
		chars, err := d.str(v, path.Key(tag))
		if err != nil {
			return nil, err
		}
		return Str{Op: StrStripChars, Chars: &chars}, m.finish()
	}
	op, err := d.enum(n, path, string(StrToLowercase), string(StrToUppercase), string(StrLen), string(StrStripChars))
	return Str{Op: StrOp(op)}, err
}

func (d *decoder) listOp(n *yaml.Node, path KeyPath) (Operation, error) {
	n = resolve(n)
	if n != nil && n.Kind == yaml.MappingNode {
		m, tag, v, err := d.tagged(n, path, "list operation", []string{string(ListJoin), string(ListFilter)})
		if err != nil {
			return nil, err
		}
		if err := m.finish(); err != nil {
			return nil, err
		}
		if tag == string(ListJoin) {
			sep, err := d.str(v, path.Key(tag))
			return List{Op: ListJoin, Separator: sep}, err
		}
		pred, err := d.chain(v, path.Key(tag))
		if err != nil {
			return nil, err
		}
		return List{Op: ListFilter, Predicate: &pred}, nil
	}
	op, err := d.enum(n, path, string(ListFirst), string(ListLen))
	return List{Op: ListOp(op)}, err
}
