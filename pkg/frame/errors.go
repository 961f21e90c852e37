package frame

import (
	"errors"
	"fmt"
)

// ErrEngine is matched by every error raised while executing a frame.
var ErrEngine = errors.New("engine error")

// EngineError reports a failure of the table engine.
type EngineError struct {
	// Op is the session operation that failed, such as "sink_csv".
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() []error {
	return []error{ErrEngine, e.Err}
}
