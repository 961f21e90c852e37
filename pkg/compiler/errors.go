package compiler

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/leapetl/pkg/pipeline"
)

// Compile error kinds. Match them with errors.Is.
var (
	ErrUnknownColumn        = errors.New("unknown column")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrInvalidPattern       = errors.New("invalid pattern")
	ErrCyclicImport         = errors.New("cyclic import")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrPathNotFound         = errors.New("path not found")
)

// CompileError is a structural problem found while compiling a document.
type CompileError struct {
	Kind     error
	Document string
	Path     pipeline.KeyPath
	Msg      string
	// Err is the underlying cause, if any.
	Err error
}

func (e *CompileError) Error() string {
	var parts []string
	if e.Document != "" {
		parts = append(parts, e.Document)
	}
	if e.Path != "" {
		parts = append(parts, string(e.Path))
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	parts = append(parts, msg)
	return strings.Join(parts, ": ")
}

func (e *CompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
