//go:build e2e
// +build e2e

// Package e2e drives the full stack against a real git binary. Run with
// `go test -tags e2e ./internal/e2e/`.
package e2e

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"wtsync/internal/cache"
	"wtsync/internal/config"
	"wtsync/internal/events"
	"wtsync/internal/folders"
	"wtsync/internal/git"
	"wtsync/internal/logging"
	"wtsync/internal/process"
	"wtsync/internal/state"
	"wtsync/internal/tui"
	"wtsync/internal/watch"
	"wtsync/internal/workflow"
	"wtsync/internal/worktree"
)

// SkipIfGitMissing skips the test if git is not available and isolates the
// test from the user's git configuration.
func SkipIfGitMissing(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("Skipping test: git not found in PATH")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "e2e")
	t.Setenv("GIT_AUTHOR_EMAIL", "e2e@example.test")
	t.Setenv("GIT_COMMITTER_NAME", "e2e")
	t.Setenv("GIT_COMMITTER_EMAIL", "e2e@example.test")
}

// Git runs git in dir and returns trimmed stdout. Failures end the test.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// InitRepo creates a repository with one commit under parent and returns
// its resolved path.
func InitRepo(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create repo dir: %v", err)
	}
	Git(t, dir, "init", "-q", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# "+name+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	Git(t, dir, "add", "README.md")
	Git(t, dir, "commit", "-q", "-m", "init")

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

// Stack is the object graph the CLI wires, built on a test log manager.
type Stack struct {
	Config  config.Config
	Logs    *logging.TestLogManager
	Bus     *events.Bus
	Runner  *process.Runner
	Repo    *git.Repo
	Store   *state.Store
	Folders *folders.Registry
	Builder *worktree.Builder
	Watcher *watch.Registry // nil unless watching
	Cache   *cache.Service
}

// NewStack wires a stack over a fresh data directory. With watching set,
// repositories are watched and the cache is started.
func NewStack(t *testing.T, cfg config.Config, workspace []string, watching bool) *Stack {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid config: %v", err)
	}
	s := &Stack{Config: cfg, Logs: logging.NewTestLogManager(1000), Bus: events.NewBus()}
	s.Runner = process.NewRunner(process.Config{Binary: cfg.GitPath}, s.Logs.For(logging.ScopeGit))
	s.Repo = git.New(s.Runner, s.Logs.For(logging.ScopeGit))

	store, err := state.Open(t.TempDir(), workspace, s.Bus, s.Logs.For(logging.ScopeState))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	s.Store = store
	s.Folders = folders.NewRegistry(store, s.Repo, s.Bus, s.Logs.For(logging.ScopeState))
	s.Builder = worktree.NewBuilder(s.Repo, s.Logs.For(logging.ScopeWorktree))

	deps := cache.Deps{
		Store:    store,
		Lister:   s.Builder,
		Folders:  s.Folders,
		Resolver: s.Repo,
		Bus:      s.Bus,
		Logger:   s.Logs.For(logging.ScopeCache),
	}
	if watching {
		s.Watcher = watch.NewRegistry(s.Bus, s.Logs.For(logging.ScopeWatch))
		deps.Watcher = s.Watcher
	}
	s.Cache = cache.New(deps, cache.OptionsFromConfig(cfg.Cache))
	if watching {
		s.Cache.Start()
	}

	t.Cleanup(func() {
		s.Cache.Close()
		if s.Watcher != nil {
			s.Watcher.Close()
		}
		s.Bus.Close()
		_ = s.Logs.Close()
	})
	return s
}

// Orchestrator returns a non-interactive orchestrator over the stack.
func (s *Stack) Orchestrator(backupDir string) *workflow.Orchestrator {
	return workflow.New(workflow.Deps{
		Repo:      s.Repo,
		Shell:     s.Runner,
		Cache:     s.Cache,
		Folders:   s.Folders,
		Bus:       s.Bus,
		Config:    s.Config,
		Logger:    s.Logs.For(logging.ScopeWorkflow),
		BackupDir: backupDir,
	})
}

// WaitForCacheUpdate waits for a CacheUpdated event of scope for which
// accept returns true.
func WaitForCacheUpdate(t *testing.T, sub *events.Subscription, scope cache.Scope, timeout time.Duration, accept func(events.CacheUpdated) bool) events.CacheUpdated {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				t.Fatal("event subscription closed")
			}
			cu, ok := ev.(events.CacheUpdated)
			if ok && cache.Scope(cu.Scope) == scope && accept(cu) {
				return cu
			}
		case <-deadline:
			t.Fatalf("no matching %s cache update within %s", scope, timeout)
		}
	}
}

// TUITestRunner drives the worktree browser through Update calls.
type TUITestRunner struct {
	t     *testing.T
	model tui.Model
}

// NewTUITestRunner creates a new test runner with the given model.
func NewTUITestRunner(t *testing.T, model tui.Model) *TUITestRunner {
	t.Cleanup(model.Close)
	return &TUITestRunner{
		t:     t,
		model: model,
	}
}

// Model returns the current model state.
func (r *TUITestRunner) Model() tui.Model {
	return r.model
}

// Init runs the Init command and processes results.
func (r *TUITestRunner) Init() {
	r.t.Helper()
	r.runCmd(r.model.Init())
}

// PressKey simulates pressing a regular key.
func (r *TUITestRunner) PressKey(key rune) {
	r.t.Helper()
	r.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{key}})
}

// PressSpecialKey simulates pressing a special key like Enter or Tab.
func (r *TUITestRunner) PressSpecialKey(keyType tea.KeyType) {
	r.t.Helper()
	r.update(tea.KeyMsg{Type: keyType})
}

// SendWindowSize sends a window size message.
func (r *TUITestRunner) SendWindowSize(width, height int) {
	r.t.Helper()
	r.update(tea.WindowSizeMsg{Width: width, Height: height})
}

func (r *TUITestRunner) update(msg tea.Msg) {
	model, cmd := r.model.Update(msg)
	r.model = model.(tui.Model)
	r.runCmd(cmd)
}

// runCmd executes a Bubbletea command and processes its result.
func (r *TUITestRunner) runCmd(cmd tea.Cmd) {
	r.runCmdWithDepth(cmd, 0)
}

// runCmdWithDepth executes a command with depth tracking to prevent infinite recursion.
func (r *TUITestRunner) runCmdWithDepth(cmd tea.Cmd, depth int) {
	if cmd == nil || depth > 10 {
		return
	}

	msg := cmd()
	if msg == nil {
		return
	}

	if batchMsg, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batchMsg {
			if c != nil {
				r.runCmdWithDepth(c, depth+1)
			}
		}
		return
	}

	switch msg.(type) {
	case tea.QuitMsg, spinner.TickMsg:
		return
	}

	model, nextCmd := r.model.Update(msg)
	r.model = model.(tui.Model)
	r.runCmdWithDepth(nextCmd, depth+1)
}

// WithTimeout returns a context cancelled after d or at test end.
func WithTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}
