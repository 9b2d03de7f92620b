// pattern: Functional Core

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wtsync/internal/process"
)

// ErrCancelled means the user or caller cancelled. It is the same value the
// process layer returns so errors.Is works across layers.
var ErrCancelled = process.ErrCancelled

// ErrBack means the user asked to return to the previous step.
var ErrBack = errors.New("back")

// Option is one entry of a pick list.
type Option struct {
	Label       string
	Description string
	Detail      string
	Icon        string
	Value       string
	Buttons     []string
}

// PickRequest asks the user to choose one option.
type PickRequest struct {
	Title       string
	Placeholder string
	Options     []Option
	AllowBack   bool
	// Default is the Value pre-selected when present in Options.
	Default string
}

// InputRequest asks for free text. Validate returns "" when the value is
// acceptable and a message to show inline otherwise.
type InputRequest struct {
	Title     string
	Prompt    string
	Value     string
	Validate  func(string) string
	AllowBack bool
}

// Prompter is the interactive pick/input/confirm collaborator. Every method
// returns ErrCancelled when dismissed and ErrBack on back navigation.
type Prompter interface {
	Pick(ctx context.Context, req PickRequest) (Option, error)
	Input(ctx context.Context, req InputRequest) (string, error)
	Confirm(ctx context.Context, title, message string, items []string) (bool, error)
}

// Level is a notification severity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel accepts info, warn/warning and error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown notification level %q", s)
}

// Notifier shows leveled notifications.
type Notifier interface {
	Notify(level Level, msg string)
}

// MinLevel drops notifications below min.
func MinLevel(n Notifier, min Level) Notifier {
	return minLevelNotifier{next: n, min: min}
}

type minLevelNotifier struct {
	next Notifier
	min  Level
}

func (m minLevelNotifier) Notify(level Level, msg string) {
	if level >= m.min {
		m.next.Notify(level, msg)
	}
}

// Progress runs fn while a progress indicator is shown. When cancellable,
// dismissing the indicator cancels the context passed to fn.
type Progress interface {
	WithProgress(ctx context.Context, title string, cancellable bool, fn func(ctx context.Context, report func(string)) error) error
}

// Opener opens a folder, optionally in a new window.
type Opener interface {
	Open(ctx context.Context, path string, newWindow bool) error
}

// NoProgress runs fn directly.
type NoProgress struct{}

func (NoProgress) WithProgress(ctx context.Context, _ string, _ bool, fn func(context.Context, func(string)) error) error {
	return fn(ctx, func(string) {})
}
