// pattern: Functional Core

package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Error is a failed user action. Err carries the underlying git text.
type Error struct {
	Action string
	Err    error
}

func (e *Error) Error() string { return e.Action + " failed: " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// ValidationError is raised before git runs.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// PartialError reports follow-up steps that failed after the primary
// operation succeeded. The primary result is kept.
type PartialError struct {
	Action   string
	Failures []error
}

func (e *PartialError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%s completed with %d problem(s): %s", e.Action, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *PartialError) Unwrap() []error { return e.Failures }

// Truncate shortens msg to max display cells, keeping ANSI sequences intact,
// and collapses it to one line.
func Truncate(msg string, max int) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if max <= 0 || ansi.StringWidth(msg) <= max {
		return msg
	}
	return ansi.Truncate(msg, max, "…")
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
