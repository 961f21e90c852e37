package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is matched by every document parse error.
var ErrParse = errors.New("parse error")

// ParseError reports a malformed document.
type ParseError struct {
	File   string
	Path   KeyPath
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
	}
	if e.Line > 0 {
		if b.Len() > 0 {
			b.WriteByte(':')
		} else {
			b.WriteString("line ")
		}
		b.WriteString(strconv.Itoa(e.Line))
		if e.Column > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(e.Column))
		}
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(string(e.Path))
		b.WriteString(": ")
	}
	fmt.Fprint(&b, e.Err)
	return b.String()
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// KeyPath locates a node in a document, e.g. "transforms[2].join.right".
type KeyPath string

// Key appends a mapping key.
func (p KeyPath) Key(name string) KeyPath {
	if p == "" {
		return KeyPath(name)
	}
	return p + "." + KeyPath(name)
}

// Index appends a sequence index.
func (p KeyPath) Index(i int) KeyPath {
	return p + KeyPath("["+strconv.Itoa(i)+"]")
}

func (p KeyPath) String() string { return string(p) }
