// pattern: Functional Core
package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"wtsync/internal/instance"
	"wtsync/internal/workflow"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitError},
		{"workflow error", &workflow.Error{Action: "Push", Err: errors.New("rejected")}, ExitError},
		{"validation error", &workflow.ValidationError{Field: "branch", Msg: "empty"}, ExitError},
		{"partial", &workflow.PartialError{Action: "Create worktree", Failures: []error{errors.New("hook failed")}}, ExitOK},
		{"cancelled", workflow.ErrCancelled, ExitCancelled},
		{"context cancelled", fmt.Errorf("list: %w", context.Canceled), ExitCancelled},
		{"no daemon", fmt.Errorf("events: %w", instance.ErrNotRunning), ExitNoDaemon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestShouldPrint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("boom"), true},
		{"no daemon", instance.ErrNotRunning, true},
		{"workflow error", &workflow.Error{Action: "Push", Err: errors.New("rejected")}, false},
		{"validation error", &workflow.ValidationError{Msg: "empty"}, false},
		{"partial", &workflow.PartialError{Action: "Create worktree"}, false},
		{"cancelled", workflow.ErrCancelled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldPrint(tt.err); got != tt.want {
				t.Errorf("shouldPrint(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorMessage_StripsDaemonStatus(t *testing.T) {
	err := errors.New("wtsync daemon returned status 500: git not found")
	if got := errorMessage(err); got != "git not found" {
		t.Errorf("errorMessage = %q, want %q", got, "git not found")
	}
	if got := errorMessage(errors.New("boom")); got != "boom" {
		t.Errorf("errorMessage = %q, want %q", got, "boom")
	}
}
