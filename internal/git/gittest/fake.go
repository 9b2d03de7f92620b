// pattern: Imperative Shell

// Package gittest provides a scripted git.Runner for tests.
package gittest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"wtsync/internal/process"
)

// Response is the scripted outcome of one command.
type Response struct {
	Stdout string
	Stderr string
	Exit   int // non-zero produces a *process.Error
}

// Call records one invocation.
type Call struct {
	Dir  string
	Args []string
}

// Key is the argument vector joined by single spaces.
func (c Call) Key() string { return strings.Join(c.Args, " ") }

// FakeRunner answers commands from a table keyed by "dir|args" or "args".
// Unknown commands fail with exit 1 so missing expectations are visible.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
	// Hook, when set, runs before the table lookup; returning true uses its
	// response.
	Hook func(ctx context.Context, call Call) (Response, bool)
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]Response)}
}

// On scripts the response for args run in any directory.
func (f *FakeRunner) On(args string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[args] = resp
	return f
}

// OnDir scripts the response for args run in dir.
func (f *FakeRunner) OnDir(dir, args string, resp Response) *FakeRunner {
	return f.On(dir+"|"+args, resp)
}

// Calls returns a copy of all recorded calls.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Called reports whether a command with exactly these args ran.
func (f *FakeRunner) Called(args string) bool {
	return f.Count(args) > 0
}

// Count reports how many times args was run.
func (f *FakeRunner) Count(args string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Key() == args {
			n++
		}
	}
	return n
}

func (f *FakeRunner) respond(ctx context.Context, dir string, args []string) (process.Result, error) {
	call := Call{Dir: dir, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.Hook
	f.mu.Unlock()

	if ctx.Err() != nil {
		return process.Result{Cancelled: true, Stderr: process.CancelledMessage, ExitCode: -1}, nil
	}

	resp, ok := Response{}, false
	if hook != nil {
		resp, ok = hook(ctx, call)
	}
	if !ok {
		f.mu.Lock()
		resp, ok = f.responses[dir+"|"+call.Key()]
		if !ok {
			resp, ok = f.responses[call.Key()]
		}
		f.mu.Unlock()
	}
	if ctx.Err() != nil {
		return process.Result{Cancelled: true, Stderr: process.CancelledMessage, ExitCode: -1}, nil
	}
	if !ok {
		resp = Response{Stderr: fmt.Sprintf("unscripted command: git %s", call.Key()), Exit: 1}
	}

	res := process.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.Exit}
	if resp.Exit != 0 {
		return res, &process.Error{Args: append([]string{"git"}, args...), ExitCode: resp.Exit, Stderr: resp.Stderr}
	}
	return res, nil
}

// Run implements git.Runner.
func (f *FakeRunner) Run(ctx context.Context, dir string, args ...string) (process.Result, error) {
	return f.respond(ctx, dir, args)
}

// Query implements git.Runner.
func (f *FakeRunner) Query(ctx context.Context, dir string, args ...string) (process.Result, error) {
	return f.respond(ctx, dir, args)
}

// Stream implements git.Runner, replaying stdout then stderr as lines.
func (f *FakeRunner) Stream(ctx context.Context, dir string, onLine func(process.Line), args ...string) (process.Result, error) {
	res, err := f.respond(ctx, dir, args)
	if !res.Cancelled && onLine != nil {
		for _, l := range splitLines(res.Stdout) {
			onLine(process.Line{Stream: process.Stdout, Text: l})
		}
		for _, l := range splitLines(res.Stderr) {
			onLine(process.Line{Stream: process.Stderr, Text: l})
		}
	}
	return res, err
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
