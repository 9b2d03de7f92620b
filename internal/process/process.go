// pattern: Imperative Shell

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"wtsync/internal/logging"
)

// CancelledMessage is the Stderr of a Result whose context was cancelled.
const CancelledMessage = "operation was cancelled"

// ErrCancelled is returned by callers that turn a cancelled Result into an
// error. Run itself reports cancellation through Result.Cancelled.
var ErrCancelled = errors.New(CancelledMessage)

// killGrace bounds how long Wait keeps reading pipes held open by
// descendants after the child was killed.
const killGrace = 2 * time.Second

// Result is the outcome of one invocation.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Cancelled bool
}

// Error reports a non-zero exit. Its message is the captured stderr.
type Error struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	if e.Err != nil && e.ExitCode < 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s exited with code %d", strings.Join(e.Args, " "), e.ExitCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stream names which pipe a Line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Line is one line of streamed output.
type Line struct {
	Stream Stream
	Text   string
}

// Config configures a Runner.
type Config struct {
	Binary string   // executable, "git" when empty
	Env    []string // extra KEY=VALUE pairs, e.g. proxy settings
}

// Runner invokes one binary with argument vectors. It never goes through a
// shell except in RunShell.
type Runner struct {
	binary string
	env    []string
	logger *logging.ScopedLogger
}

// NewRunner creates a Runner. logger receives every invocation.
func NewRunner(cfg Config, logger *logging.ScopedLogger) *Runner {
	if cfg.Binary == "" {
		cfg.Binary = "git"
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Runner{binary: cfg.Binary, env: cfg.Env, logger: logger}
}

// Binary returns the executable this runner invokes.
func (r *Runner) Binary() string {
	return r.binary
}

// Run executes the binary for a mutating operation.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) (Result, error) {
	return r.invoke(ctx, dir, r.gitEnv(false), nil, args)
}

// Query executes the binary for a read-only operation. Optional locks are
// disabled so queries never contend with the user's own git commands.
func (r *Runner) Query(ctx context.Context, dir string, args ...string) (Result, error) {
	return r.invoke(ctx, dir, r.gitEnv(true), nil, args)
}

// Stream executes the binary and delivers output lines to onLine as they
// arrive. The full output is still returned in the Result.
func (r *Runner) Stream(ctx context.Context, dir string, onLine func(Line), args ...string) (Result, error) {
	return r.invoke(ctx, dir, r.gitEnv(false), onLine, args)
}

// RunShell runs a user-supplied command line through the platform shell.
// The locale is left alone since the output is only shown, never parsed.
func (r *Runner) RunShell(ctx context.Context, dir, command string, onLine func(Line)) (Result, error) {
	name, args := shellCommand(command)
	env := mergeEnv(os.Environ(), r.env)
	return r.execBinary(ctx, name, dir, env, onLine, args)
}

func (r *Runner) gitEnv(readOnly bool) []string {
	pinned := []string{
		"LC_ALL=C",
		"LANG=C",
		"LANGUAGE=C",
		"GIT_TERMINAL_PROMPT=0",
		"GCM_INTERACTIVE=never",
	}
	if readOnly {
		pinned = append(pinned, "GIT_OPTIONAL_LOCKS=0")
	}
	return mergeEnv(os.Environ(), append(pinned, r.env...))
}

func (r *Runner) invoke(ctx context.Context, dir string, env []string, onLine func(Line), args []string) (Result, error) {
	return r.execBinary(ctx, r.binary, dir, env, onLine, args)
}

func (r *Runner) execBinary(ctx context.Context, name, dir string, env []string, onLine func(Line), args []string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return cancelledResult(), nil
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.WaitDelay = killGrace
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		killTree(cmd)
		return nil
	}

	var stdout, stderr bytes.Buffer
	if onLine == nil {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		// One mutex for both pipes so onLine is never called concurrently.
		mu := &sync.Mutex{}
		cmd.Stdout = &lineWriter{mu: mu, buf: &stdout, stream: Stdout, onLine: onLine}
		cmd.Stderr = &lineWriter{mu: mu, buf: &stderr, stream: Stderr, onLine: onLine}
	}

	start := time.Now()
	r.logger.Debug("exec", "cmd", name, "args", args, "dir", dir)

	err := cmd.Run()
	if w, ok := cmd.Stdout.(*lineWriter); ok {
		w.flush()
		cmd.Stderr.(*lineWriter).flush()
	}
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		r.logger.Debug("exec cancelled", "cmd", name, "args", args, "duration", elapsed)
		return cancelledResult(), nil
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		r.logger.Error("exec failed",
			"cmd", name, "args", args, "dir", dir,
			"exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr), "error", err)
		return res, &Error{Args: append([]string{name}, args...), ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
	}

	r.logger.Debug("exec ok", "cmd", name, "args", args, "stdout_bytes", len(res.Stdout), "duration", elapsed)
	return res, nil
}

func cancelledResult() Result {
	return Result{Cancelled: true, Stderr: CancelledMessage, ExitCode: -1}
}

// mergeEnv returns base with every key in overrides replaced or appended.
// Keys compare case-sensitively, which is what git sees on unix.
func mergeEnv(base, overrides []string) []string {
	keys := make(map[string]bool, len(overrides))
	for _, kv := range overrides {
		if k, _, ok := strings.Cut(kv, "="); ok {
			keys[k] = true
		}
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if !keys[k] {
			out = append(out, kv)
		}
	}
	return append(out, overrides...)
}

// lineWriter captures output and hands complete lines to a callback.
// Progress output from git uses bare \r; those are treated as line ends.
type lineWriter struct {
	mu      *sync.Mutex
	buf     *bytes.Buffer
	pending []byte
	stream  Stream
	onLine  func(Line)
}

var _ io.Writer = (*lineWriter)(nil)

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexAny(w.pending, "\r\n")
		if i < 0 {
			break
		}
		line := string(w.pending[:i])
		w.pending = w.pending[i+1:]
		if line != "" {
			w.onLine(Line{Stream: w.stream, Text: line})
		}
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) > 0 {
		w.onLine(Line{Stream: w.stream, Text: string(w.pending)})
		w.pending = nil
	}
}
