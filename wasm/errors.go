package wasm

import (
	"fmt"
	"strings"
)

// ContextFrame is one entry in an error's context stack: what the decoder
// or validator was doing, and where, when the error was recorded.
type ContextFrame struct {
	Offset      int
	Description string
}

// DecodeError is returned by decode and validation operations. It carries
// the context-frame stack active when the error was recorded (outermost
// first) plus the terminal message, rendered by Error() as a single
// colon-joined sentence so callers can assert on exact text.
type DecodeError struct {
	Frames  []ContextFrame
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	for _, f := range e.Frames {
		b.WriteString(f.Description)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// FeatureDisabledError is returned by Features.Require.
type FeatureDisabledError struct {
	Feature string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("feature %q is disabled", e.Feature)
}

// ErrorSink accumulates validation errors without aborting the traversal
// that produces them, so one run can report several problems, and owns
// the decoder's context-frame stack.
type ErrorSink struct {
	stack  []ContextFrame
	errors []error
}

// NewErrorSink returns an empty sink.
func NewErrorSink() *ErrorSink { return &ErrorSink{} }

// PushContext records that a named decode operation has begun at offset.
// Callers must pair every PushContext with a PopContext, including on error
// paths; use a deferred PopContext to avoid leaks.
func (s *ErrorSink) PushContext(offset int, description string) {
	s.stack = append(s.stack, ContextFrame{Offset: offset, Description: description})
}

// PopContext removes the most recently pushed frame.
func (s *ErrorSink) PopContext() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// Record appends a located error built from the current context stack plus
// message, and returns it so callers may both record and propagate.
func (s *ErrorSink) Record(offset int, format string, args ...interface{}) *DecodeError {
	frames := make([]ContextFrame, len(s.stack))
	copy(frames, s.stack)
	err := &DecodeError{Frames: frames, Message: fmt.Sprintf(format, args...)}
	s.errors = append(s.errors, err)
	logDecodeError(offset, err.Error())
	return err
}

// Errors returns every error recorded so far, in the order encountered.
func (s *ErrorSink) Errors() []error { return s.errors }

// HasErrors reports whether any error has been recorded.
func (s *ErrorSink) HasErrors() bool { return len(s.errors) > 0 }
