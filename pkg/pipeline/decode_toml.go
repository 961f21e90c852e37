package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// parseTOML decodes a TOML document into the same node tree a YAML document
// produces, so both go through one strict decoder. TOML tables carry no key
// order; their keys come out sorted.
func parseTOML(data []byte, file string) (*Document, error) {
	var v map[string]any
	if err := toml.Unmarshal(data, &v); err != nil {
		e := &ParseError{File: file, Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			e.Line, e.Column = de.Position()
		}
		return nil, e
	}
	d := &decoder{file: file}
	if len(v) == 0 {
		return nil, d.fail(nil, "", "empty document")
	}

	var root yaml.Node
	if err := root.Encode(plainTOML(v)); err != nil {
		return nil, &ParseError{File: file, Err: fmt.Errorf("failed to convert TOML: %w", err)}
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

// plainTOML replaces TOML date and time values with their text form.
func plainTOML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = plainTOML(e)
		}
	case []any:
		for i, e := range x {
			x[i] = plainTOML(e)
		}
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case toml.LocalDate:
		return x.String()
	case toml.LocalTime:
		return x.String()
	case toml.LocalDateTime:
		return x.String()
	}
	return v
}
