package proc

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned when Start is called while a live process is
// still owned by the handle.
var ErrAlreadyStarted = errors.New("process already started")

// ErrNotStarted is returned by operations that require a started process.
var ErrNotStarted = errors.New("process not started")

// SpawnError indicates the external executable could not be launched at all
// (missing binary, permission denied). It is fatal to the attack.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// UnexpectedOutputError reports content on a stream that the wrapped tool is
// expected to keep silent, or output contradicting the tool's contract. It is
// reported, not fatal; the attack continues.
type UnexpectedOutputError struct {
	Kind   string
	Stream string
	Line   string
}

func (e *UnexpectedOutputError) Error() string {
	return fmt.Sprintf("%s: unexpected %s output: %q", e.Kind, e.Stream, e.Line)
}
