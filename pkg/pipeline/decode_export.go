package pipeline

import (
	"gopkg.in/yaml.v3"
)

var exportTags = []string{"csv", "json", "json_line", "parquet"}

func (d *decoder) exports(n *yaml.Node, path KeyPath) ([]Export, error) {
	items, err := d.seq(n, path)
	if err != nil {
		return nil, err
	}
	var out []Export
	for i, item := range items {
		e, err := d.export(item, path.Index(i))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) export(n *yaml.Node, path KeyPath) (Export, error) {
	outer, tag, v, err := d.tagged(n, path, "export", exportTags)
	if err != nil {
		return nil, err
	}
	if err := outer.finish(); err != nil {
		return nil, err
	}
	path = path.Key(tag)

	m, err := d.mapping(v, path, tag+" export")
	if err != nil {
		return nil, err
	}
	var dest Destination
	fv, err := m.require("folder")
	if err != nil {
		return nil, err
	}
	if dest.Folder, err = d.nonEmpty(fv, path.Key("folder")); err != nil {
		return nil, err
	}
	nv, err := m.require("name")
	if err != nil {
		return nil, err
	}
	if dest.Name, err = d.nonEmpty(nv, path.Key("name")); err != nil {
		return nil, err
	}
	if dv, ok := m.take("date_format"); ok {
		if dest.DateFormat, err = d.str(dv, path.Key("date_format")); err != nil {
			return nil, err
		}
	}

	var e Export
	switch tag {
	case "csv":
		csv := CSVExport{Destination: dest}
		if sv, ok := m.take("separator"); ok {
			if csv.Separator, err = d.char(sv, path.Key("separator")); err != nil {
				return nil, err
			}
		}
		if hv, ok := m.take("header"); ok {
			b, err := d.boolean(hv, path.Key("header"))
			if err != nil {
				return nil, err
			}
			csv.Header = &b
		}
		e = csv
	case "json":
		e = JSONExport{Destination: dest}
	case "json_line":
		e = JSONLineExport{Destination: dest}
	case "parquet":
		e = ParquetExport{Destination: dest}
	}
	return e, m.finish()
}
