// pattern: Functional Core
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wtsync/internal/instance"
	"wtsync/internal/workflow"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitNoDaemon  = 2
	ExitCancelled = 130
)

// UsageError is a bad invocation; the command's usage is printed with it.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps a command error to the process exit code. Partial failures
// were already reported as warnings and count as success.
func ExitCode(err error) int {
	var perr *workflow.PartialError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &perr):
		return ExitOK
	case workflow.IsCancelled(err) || errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, instance.ErrNotRunning):
		return ExitNoDaemon
	default:
		return ExitError
	}
}

// shouldPrint reports whether the app still has to print err. Workflow
// errors were shown by the notifier and cancellation stays silent.
func shouldPrint(err error) bool {
	var (
		werr *workflow.Error
		verr *workflow.ValidationError
		perr *workflow.PartialError
	)
	switch {
	case errors.As(err, &werr), errors.As(err, &verr), errors.As(err, &perr):
		return false
	case workflow.IsCancelled(err) || errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// errorMessage strips the status prefix of daemon errors.
func errorMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "wtsync daemon returned status") {
		if parts := strings.SplitN(msg, ": ", 2); len(parts) > 1 {
			return parts[1]
		}
	}
	return msg
}
