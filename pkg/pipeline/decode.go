package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile reads and parses the document at path. Files ending in .toml
// are read as TOML, everything else as YAML.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{File: path, Err: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return parseTOML(data, path)
	}
	return parse(data, path)
}

// Parse parses a document held in memory.
func Parse(data []byte) (*Document, error) {
	return parse(data, "")
}

func parse(data []byte, file string) (*Document, error) {
	d := &decoder{file: file}

	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, d.fail(nil, "", "empty document")
		}
		return nil, &ParseError{File: file, Err: err}
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	doc, err := d.document(node)
	if err != nil {
		return nil, err
	}
	doc.File = file
	return doc, nil
}

type decoder struct {
	file string
}

func (d *decoder) fail(n *yaml.Node, path KeyPath, format string, args ...any) error {
	e := &ParseError{File: d.file, Path: path, Err: fmt.Errorf(format, args...)}
	if n != nil {
		e.Line, e.Column = n.Line, n.Column
	}
	return e
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// mapping tracks which keys of a YAML mapping have been consumed so that
// leftovers can be reported.
type mapping struct {
	d      *decoder
	node   *yaml.Node
	path   KeyPath
	keys   []string
	values map[string]*yaml.Node
	kNodes map[string]*yaml.Node
	used   map[string]bool
}

func (d *decoder) mapping(n *yaml.Node, path KeyPath, what string) (*mapping, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, d.fail(n, path, "%s must be a mapping", what)
	}
	m := &mapping{
		d:      d,
		node:   n,
		path:   path,
		values: make(map[string]*yaml.Node, len(n.Content)/2),
		kNodes: make(map[string]*yaml.Node, len(n.Content)/2),
		used:   make(map[string]bool, len(n.Content)/2),
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := resolve(n.Content[i])
		if k.Kind != yaml.ScalarNode {
			return nil, d.fail(k, path, "mapping keys must be scalars")
		}
		if _, dup := m.values[k.Value]; dup {
			return nil, d.fail(k, path.Key(k.Value), "duplicate key %q", k.Value)
		}
		m.keys = append(m.keys, k.Value)
		m.values[k.Value] = n.Content[i+1]
		m.kNodes[k.Value] = k
	}
	return m, nil
}

func (m *mapping) take(key string) (*yaml.Node, bool) {
	v, ok := m.values[key]
	if ok {
		m.used[key] = true
	}
	return v, ok
}

func (m *mapping) require(key string) (*yaml.Node, error) {
	v, ok := m.take(key)
	if !ok {
		return nil, m.d.fail(m.node, m.path, "missing required field %q", key)
	}
	return v, nil
}

// finish rejects keys that were never taken.
func (m *mapping) finish() error {
	for _, k := range m.keys {
		if !m.used[k] {
			return m.d.fail(m.kNodes[k], m.path.Key(k), "unknown field %q", k)
		}
	}
	return nil
}

// tagged decodes a mapping holding exactly one variant tag plus the allowed
// extra keys. It returns the mapping, the tag and the tag's value.
func (d *decoder) tagged(n *yaml.Node, path KeyPath, what string, tags []string, extra ...string) (*mapping, string, *yaml.Node, error) {
	m, err := d.mapping(n, path, what)
	if err != nil {
		return nil, "", nil, err
	}
	var found []string
	for _, k := range m.keys {
		if !slices.Contains(extra, k) {
			found = append(found, k)
		}
	}
	switch {
	case len(found) == 0:
		return nil, "", nil, d.fail(m.node, path, "%s needs one of: %s", what, strings.Join(tags, ", "))
	case len(found) > 1:
		return nil, "", nil, d.fail(m.node, path, "%s has more than one tag: %s", what, strings.Join(found, ", "))
	case !slices.Contains(tags, found[0]):
		return nil, "", nil, d.fail(m.kNodes[found[0]], path.Key(found[0]), "unknown %s %q (expected one of: %s)", what, found[0], strings.Join(tags, ", "))
	}
	v, _ := m.take(found[0])
	return m, found[0], v, nil
}

func (d *decoder) str(n *yaml.Node, path KeyPath) (string, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode || isNull(n) {
		return "", d.fail(n, path, "expected a string")
	}
	return n.Value, nil
}

func (d *decoder) nonEmpty(n *yaml.Node, path KeyPath) (string, error) {
	s, err := d.str(n, path)
	if err == nil && s == "" {
		err = d.fail(n, path, "must not be empty")
	}
	return s, err
}

func (d *decoder) boolean(n *yaml.Node, path KeyPath) (bool, error) {
	n = resolve(n)
	var b bool
	if n == nil || n.Kind != yaml.ScalarNode || n.Decode(&b) != nil {
		return false, d.fail(n, path, "expected a boolean")
	}
	return b, nil
}

func (d *decoder) char(n *yaml.Node, path KeyPath) (string, error) {
	s, err := d.str(n, path)
	if err != nil {
		return "", err
	}
	if len([]rune(s)) != 1 {
		return "", d.fail(n, path, "separator must be a single character, got %q", s)
	}
	return s, nil
}

// seq returns the items of a sequence; null counts as empty.
func (d *decoder) seq(n *yaml.Node, path KeyPath) ([]*yaml.Node, error) {
	n = resolve(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.fail(n, path, "expected a list")
	}
	return n.Content, nil
}

// strings accepts a single string or a list of strings.
func (d *decoder) strings(n *yaml.Node, path KeyPath) ([]string, error) {
	n = resolve(n)
	if n != nil && n.Kind == yaml.ScalarNode && !isNull(n) {
		return []string{n.Value}, nil
	}
	items, err := d.seq(n, path)
	if err != nil {
		return nil, err
	}
	var out []string
	for i, item := range items {
		s, err := d.nonEmpty(item, path.Index(i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) document(n *yaml.Node) (*Document, error) {
	m, err := d.mapping(n, "", "document")
	if err != nil {
		return nil, err
	}
	doc := &Document{}

	src, err := m.require("source")
	if err != nil {
		return nil, err
	}
	if doc.Source, err = d.loader(src, "source"); err != nil {
		return nil, err
	}
	if v, ok := m.take("transforms"); ok {
		if doc.Transforms, err = d.transforms(v, "transforms"); err != nil {
			return nil, err
		}
	}
	if v, ok := m.take("exports"); ok {
		if doc.Exports, err = d.exports(v, "exports"); err != nil {
			return nil, err
		}
	}
	return doc, m.finish()
}
