package pipeline

import (
	"gopkg.in/yaml.v3"
)

var sourceTags = []string{"csv", "json", "json_line", "parquet", "config", "inline"}

func (d *decoder) loader(n *yaml.Node, path KeyPath) (Loader, error) {
	m, tag, v, err := d.tagged(n, path, "source", sourceTags, "transforms")
	if err != nil {
		return Loader{}, err
	}
	var l Loader
	if l.Source, err = d.source(tag, v, path.Key(tag)); err != nil {
		return Loader{}, err
	}
	if t, ok := m.take("transforms"); ok {
		if l.Transforms, err = d.transforms(t, path.Key("transforms")); err != nil {
			return Loader{}, err
		}
	}
	return l, m.finish()
}

func (d *decoder) source(tag string, n *yaml.Node, path KeyPath) (Source, error) {
	m, err := d.mapping(n, path, tag+" source")
	if err != nil {
		return nil, err
	}

	if tag == "inline" {
		src, err := d.inline(m)
		if err != nil {
			return nil, err
		}
		return src, m.finish()
	}

	pv, err := m.require("path")
	if err != nil {
		return nil, err
	}
	p, err := d.nonEmpty(pv, path.Key("path"))
	if err != nil {
		return nil, err
	}
	if tag == "config" {
		return ConfigSource{Path: p}, m.finish()
	}

	var schema Schema
	if sv, ok := m.take("schema"); ok {
		if schema, err = d.schema(sv, path.Key("schema")); err != nil {
			return nil, err
		}
	}

	var src Source
	switch tag {
	case "csv":
		csv := CSVSource{Path: p, Schema: schema}
		if v, ok := m.take("separator"); ok {
			if csv.Separator, err = d.char(v, path.Key("separator")); err != nil {
				return nil, err
			}
		}
		if v, ok := m.take("has_header"); ok {
			b, err := d.boolean(v, path.Key("has_header"))
			if err != nil {
				return nil, err
			}
			csv.HasHeader = &b
		}
		src = csv
	case "json":
		src = JSONSource{Path: p, Schema: schema}
	case "json_line":
		src = JSONLineSource{Path: p, Schema: schema}
	case "parquet":
		src = ParquetSource{Path: p, Schema: schema}
	}
	return src, m.finish()
}

func (d *decoder) schema(n *yaml.Node, path KeyPath) (Schema, error) {
	if isNull(resolve(n)) {
		return nil, nil
	}
	m, err := d.mapping(n, path, "schema")
	if err != nil {
		return nil, err
	}
	var schema Schema
	for _, k := range m.keys {
		v, _ := m.take(k)
		t, err := d.nonEmpty(v, path.Key(k))
		if err != nil {
			return nil, err
		}
		schema = append(schema, SchemaField{Name: k, Type: t})
	}
	return schema, nil
}

func (d *decoder) inline(m *mapping) (InlineSource, error) {
	cv, err := m.require("columns")
	if err != nil {
		return InlineSource{}, err
	}
	path := m.path.Key("columns")
	items, err := d.seq(cv, path)
	if err != nil {
		return InlineSource{}, err
	}
	if len(items) == 0 {
		return InlineSource{}, d.fail(cv, path, "inline source needs at least one column")
	}

	var src InlineSource
	for i, item := range items {
		ip := path.Index(i)
		cm, err := d.mapping(item, ip, "inline column")
		if err != nil {
			return InlineSource{}, err
		}
		var col InlineColumn
		nv, err := cm.require("name")
		if err != nil {
			return InlineSource{}, err
		}
		if col.Name, err = d.nonEmpty(nv, ip.Key("name")); err != nil {
			return InlineSource{}, err
		}
		tv, err := cm.require("datatype")
		if err != nil {
			return InlineSource{}, err
		}
		if col.DataType, err = d.nonEmpty(tv, ip.Key("datatype")); err != nil {
			return InlineSource{}, err
		}
		if vv, ok := cm.take("values"); ok {
			values, err := d.seq(vv, ip.Key("values"))
			if err != nil {
				return InlineSource{}, err
			}
			for j, value := range values {
				value = resolve(value)
				if isNull(value) {
					col.Values = append(col.Values, nil)
					continue
				}
				s, err := d.str(value, ip.Key("values").Index(j))
				if err != nil {
					return InlineSource{}, err
				}
				col.Values = append(col.Values, &s)
			}
		}
		if err := cm.finish(); err != nil {
			return InlineSource{}, err
		}
		src.Columns = append(src.Columns, col)
	}
	return src, nil
}
