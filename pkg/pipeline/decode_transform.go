package pipeline

import (
	"strings"

	"gopkg.in/yaml.v3"
)

var transformTags = []string{
	"select", "drop", "rename", "filter", "extract", "unnest", "explode",
	"sort_by", "drop_duplicates", "join", "set", "with_columns",
}

func (d *decoder) transforms(n *yaml.Node, path KeyPath) ([]Transform, error) {
	items, err := d.seq(n, path)
	if err != nil {
		return nil, err
	}
	var out []Transform
	for i, item := range items {
		t, err := d.transform(item, path.Index(i))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (d *decoder) transform(n *yaml.Node, path KeyPath) (Transform, error) {
	m, tag, v, err := d.tagged(n, path, "transform", transformTags)
	if err != nil {
		return nil, err
	}
	if err := m.finish(); err != nil {
		return nil, err
	}
	path = path.Key(tag)

	switch tag {
	case "select":
		cols, err := d.chains(v, path, 1)
		return Select{Columns: cols}, err
	case "drop":
		cols, err := d.chains(v, path, 1)
		return Drop{Columns: cols}, err
	case "set", "with_columns":
		cols, err := d.chains(v, path, 1)
		return Set{Columns: cols}, err
	case "filter":
		if r := resolve(v); r != nil && r.Kind == yaml.SequenceNode {
			preds, err := d.chains(v, path, 1)
			return Filter{Predicates: preds}, err
		}
		c, err := d.chain(v, path)
		return Filter{Predicates: []Chain{c}}, err
	case "rename":
		return d.rename(v, path)
	case "extract":
		return d.extract(v, path)
	case "unnest":
		cols, err := d.columns(v, path)
		return Unnest{Columns: cols}, err
	case "explode":
		cols, err := d.columns(v, path)
		return Explode{Columns: cols}, err
	case "sort_by":
		return d.sortBy(v, path)
	case "drop_duplicates":
		return d.dropDuplicates(v, path)
	case "join":
		return d.join(v, path)
	}
	return nil, d.fail(n, path, "unsupported transform %q", tag)
}

func (d *decoder) columns(n *yaml.Node, path KeyPath) ([]string, error) {
	cols, err := d.strings(n, path)
	if err == nil && len(cols) == 0 {
		err = d.fail(n, path, "needs at least one column")
	}
	return cols, err
}

// rename accepts {old: new}, {map: {old: new}} or {prefix: p}. A lone map or
// prefix key selects the tagged form; a column literally named map or prefix
// is renamed through {map: ...}.
func (d *decoder) rename(n *yaml.Node, path KeyPath) (Transform, error) {
	m, err := d.mapping(n, path, "rename")
	if err != nil {
		return nil, err
	}
	if len(m.keys) == 1 {
		k := m.keys[0]
		v := resolve(m.values[k])
		switch {
		case k == "prefix" && v != nil && v.Kind == yaml.ScalarNode:
			prefix, err := d.nonEmpty(v, path.Key(k))
			if err != nil {
				return nil, err
			}
			return Rename{Prefix: prefix}, nil
		case k == "map" && v != nil && v.Kind == yaml.MappingNode:
			if m, err = d.mapping(v, path.Key(k), "rename map"); err != nil {
				return nil, err
			}
			path = path.Key(k)
		}
	}
	if len(m.keys) == 0 {
		return nil, d.fail(n, path, "rename needs at least one column")
	}
	var r Rename
	for _, k := range m.keys {
		v, _ := m.take(k)
		to, err := d.nonEmpty(v, path.Key(k))
		if err != nil {
			return nil, err
		}
		r.Columns = append(r.Columns, RenameColumn{From: k, To: to})
	}
	return r, nil
}

func (d *decoder) extract(n *yaml.Node, path KeyPath) (Transform, error) {
	m, err := d.mapping(n, path, "extract")
	if err != nil {
		return nil, err
	}
	var e Extract
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
	if fv, ok := m.take("filter"); ok {
		if e.Filter, err = d.boolean(fv, path.Key("filter")); err != nil {
			return nil, err
		}
	}
	return e, m.finish()
}

func (d *decoder) sortBy(n *yaml.Node, path KeyPath) (Transform, error) {
	var items []*yaml.Node
	if r := resolve(n); r != nil && r.Kind != yaml.SequenceNode {
		items = []*yaml.Node{r}
	} else {
		var err error
		if items, err = d.seq(n, path); err != nil {
			return nil, err
		}
	}
	if len(items) == 0 {
		return nil, d.fail(n, path, "sort_by needs at least one key")
	}

	var s SortBy
	for i, item := range items {
		ip := path.Index(i)
		item = resolve(item)
		if item.Kind == yaml.ScalarNode {
			col, err := d.nonEmpty(item, ip)
			if err != nil {
				return nil, err
			}
			s.Keys = append(s.Keys, SortKey{Column: col})
			continue
		}
		m, err := d.mapping(item, ip, "sort key")
		if err != nil {
			return nil, err
		}
		var key SortKey
		cv, err := m.require("column")
		if err != nil {
			return nil, err
		}
		if key.Column, err = d.nonEmpty(cv, ip.Key("column")); err != nil {
			return nil, err
		}
		if dv, ok := m.take("descending"); ok {
			if key.Descending, err = d.boolean(dv, ip.Key("descending")); err != nil {
				return nil, err
			}
		}
		if err := m.finish(); err != nil {
			return nil, err
		}
		s.Keys = append(s.Keys, key)
	}
	return s, nil
}

func (d *decoder) dropDuplicates(n *yaml.Node, path KeyPath) (Transform, error) {
	dd := DropDuplicates{Keep: KeepAny}
	if isNull(resolve(n)) {
		return dd, nil
	}
	m, err := d.mapping(n, path, "drop_duplicates")
	if err != nil {
		return nil, err
	}
	if sv, ok := m.take("subset"); ok {
		if dd.Subset, err = d.strings(sv, path.Key("subset")); err != nil {
			return nil, err
		}
	}
	if kv, ok := m.take("keep"); ok {
		keep, err := d.enum(kv, path.Key("keep"), string(KeepFirst), string(KeepLast), string(KeepAny), string(KeepNone))
		if err != nil {
			return nil, err
		}
		dd.Keep = Keep(keep)
	}
	return dd, m.finish()
}

func (d *decoder) join(n *yaml.Node, path KeyPath) (Transform, error) {
	m, err := d.mapping(n, path, "join")
	if err != nil {
		return nil, err
	}
	j := Join{How: JoinInner}

	rv, err := m.require("right")
	if err != nil {
		return nil, err
	}
	if j.Right, err = d.loader(rv, path.Key("right")); err != nil {
		return nil, err
	}
	lv, err := m.require("left_on")
	if err != nil {
		return nil, err
	}
	if j.LeftOn, err = d.columns(lv, path.Key("left_on")); err != nil {
		return nil, err
	}
	rov, err := m.require("right_on")
	if err != nil {
		return nil, err
	}
	if j.RightOn, err = d.columns(rov, path.Key("right_on")); err != nil {
		return nil, err
	}
	if len(j.LeftOn) != len(j.RightOn) {
		return nil, d.fail(m.node, path, "left_on has %d keys but right_on has %d", len(j.LeftOn), len(j.RightOn))
	}
	if hv, ok := m.take("how"); ok {
		how, err := d.enum(hv, path.Key("how"),
			string(JoinInner), string(JoinLeft), string(JoinRight), string(JoinFull), string(JoinSemi), string(JoinAnti))
		if err != nil {
			return nil, err
		}
		j.How = JoinHow(how)
	}
	return j, m.finish()
}

func (d *decoder) enum(n *yaml.Node, path KeyPath, allowed ...string) (string, error) {
	s, err := d.str(n, path)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", d.fail(n, path, "invalid value %q (expected one of: %s)", s, strings.Join(allowed, ", "))
}
