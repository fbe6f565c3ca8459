package jitrt

import (
	"fmt"

	"github.com/gomlx/jitrt/pkg/jitrt/rttypes"
	"github.com/pkg/errors"
)

// SourceParseError is returned by Instantiate if the source can't be parsed, or if it doesn't
// define the entrypoint.
type SourceParseError struct {
	Entrypoint string
	Err        error
}

func (e *SourceParseError) Error() string {
	return fmt.Sprintf("failed to parse the source of @%s: %v", e.Entrypoint, e.Err)
}

func (e *SourceParseError) Unwrap() error { return e.Err }

// ArgumentMismatchError is returned when arguments don't match the signature.
type ArgumentMismatchError struct {
	// Index of the argument, or -1 if the number of arguments is wrong.
	Index int

	Expected, Got string
	Reason        string
}

func (e *ArgumentMismatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("argument mismatch: %s (expected %s, got %s)", e.Reason, e.Expected, e.Got)
	}
	return fmt.Sprintf("argument #%d mismatch: %s (expected %s, got %s)", e.Index, e.Reason, e.Expected, e.Got)
}

// ConversionError is set on results for which no conversion matched, or for which the conversion
// failed.
type ConversionError struct {
	Index int
	Type  rttypes.Type

	// Err is the error of the conversion, nil if no conversion matched.
	Err error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to convert result #%d of type %s: %v", e.Index, e.Type, e.Err)
	}
	return fmt.Sprintf("no conversion matches result #%d of type %s", e.Index, e.Type)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// RuntimeExecutionError is returned (and set on all results) when the compiled program fails.
type RuntimeExecutionError struct {
	Executable string
	Err        error
}

func (e *RuntimeExecutionError) Error() string {
	return fmt.Sprintf("execution of %s failed: %v", e.Executable, e.Err)
}

func (e *RuntimeExecutionError) Unwrap() error { return e.Err }

// ErrCacheFull is the error of specializations requested after CompilationOptions.MaxSpecializations
// was reached.
var ErrCacheFull = errors.New("jitrt: specialization cache is full")
