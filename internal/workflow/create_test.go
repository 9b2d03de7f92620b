package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wtsync/internal/cache"
	"wtsync/internal/events"
	"wtsync/internal/git"
	"wtsync/internal/git/gittest"
)

func TestCreateWorktreeWithPresetAnswers(t *testing.T) {
	h := newHarness(t)
	target := filepath.Join(filepath.Dir(h.main), "wt-feature")
	h.runner.On("rev-parse --verify --quiet refs/heads/feature", gittest.Response{Stdout: "abc\n"})
	h.runner.On("worktree add "+target+" feature", gittest.Response{})
	sub := h.bus.Subscribe(4, events.KindWorktreeChanged)

	open := false
	res, err := h.orchestrator().CreateWorktree(context.Background(), CreateOptions{
		Dir: h.main, Ref: "feature", Path: target, Yes: true, Open: &open,
	})
	if err != nil {
		t.Fatalf("CreateWorktree() error = %v", err)
	}
	if res.Path != target || res.Branch != "feature" {
		t.Errorf("result = %+v", res)
	}
	if !h.runner.Called("worktree add " + target + " feature") {
		t.Errorf("worktree add not run; calls = %v", h.runner.Calls())
	}
	if len(h.prompt.pickReqs)+len(h.prompt.inputReqs)+len(h.prompt.confirmMsgs) != 0 {
		t.Error("preset answers should not prompt")
	}
	want := []invalidation{{cache.Global, h.main}, {cache.Workspace, h.main}}
	if len(h.cache.invalidated) != 2 || h.cache.invalidated[0] != want[0] || h.cache.invalidated[1] != want[1] {
		t.Errorf("invalidated = %v, want %v", h.cache.invalidated, want)
	}
	ev := (<-sub.C()).(events.WorktreeChanged)
	if ev.Action != "create" || ev.Path != target {
		t.Errorf("event = %+v", ev)
	}
	if got := h.notify.at(LevelInfo); len(got) != 1 || !strings.Contains(got[0], target) {
		t.Errorf("info notifications = %v", got)
	}
}

func TestCreateWorktreeNewBranchFromBase(t *testing.T) {
	h := newHarness(t)
	target := filepath.Join(filepath.Dir(h.main), "wt-new")
	h.runner.On("check-ref-format --branch topic/x", gittest.Response{Stdout: "topic/x\n"})
	h.runner.On("worktree add -b topic/x --no-track "+target+" origin/main", gittest.Response{})

	open := false
	res, err := h.orchestrator().CreateWorktree(context.Background(), CreateOptions{
		Dir: h.main, NewBranch: "topic/x", Base: "origin/main", Path: target, Yes: true, Open: &open,
	})
	if err != nil {
		t.Fatalf("CreateWorktree() error = %v", err)
	}
	if res.Branch != "topic/x" {
		t.Errorf("Branch = %q", res.Branch)
	}
}

func TestCreateWorktreeRejectsExistingBranch(t *testing.T) {
	h := newHarness(t)
	h.runner.On("check-ref-format --branch main", gittest.Response{Stdout: "main\n"})
	h.runner.On("rev-parse --verify --quiet refs/heads/main", gittest.Response{Stdout: "abc\n"})

	_, err := h.orchestrator().CreateWorktree(context.Background(), CreateOptions{
		Dir: h.main, NewBranch: "main", Path: filepath.Join(t.TempDir(), "x"), Yes: true,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if got := h.notify.at(LevelError); len(got) != 1 || !strings.Contains(got[0], "already exists") {
		t.Errorf("error notifications = %v", got)
	}
	for _, c := range h.runner.Calls() {
		if c.Args[0] == "worktree" {
			t.Errorf("git worktree ran after validation failed: %v", c.Args)
		}
	}
}

func TestCreateWorktreeBackReturnsToRefSelection(t *testing.T) {
	h := newHarness(t)
	h.cache.refs[h.main] = []git.RefRecord{
		{git.FieldRefName: "refs/heads/main", git.FieldShortName: "main"},
		{git.FieldRefName: "refs/heads/feature", git.FieldShortName: "feature"},
	}
	target := filepath.Join(filepath.Dir(h.main), "picked")
	h.runner.On("rev-parse --verify --quiet refs/heads/feature", gittest.Response{Stdout: "abc\n"})
	h.runner.On("worktree add "+target+" feature", gittest.Response{})

	h.prompt.picks = []pickAnswer{{value: "main"}, {value: "feature"}}
	h.prompt.inputs = []inputAnswer{{err: ErrBack}, {value: target}}
	h.prompt.confirms = []confirmAnswer{{ok: true}, {ok: false}}

	res, err := h.orchestrator().CreateWorktree(context.Background(), CreateOptions{Dir: h.main})
	if err != nil {
		t.Fatalf("CreateWorktree() error = %v", err)
	}
	if len(h.prompt.pickReqs) != 2 {
		t.Fatalf("ref picker shown %d times, want 2", len(h.prompt.pickReqs))
	}
	if h.prompt.pickReqs[0].Options[0].Value != newBranchValue {
		t.Error("first option should offer a new branch")
	}
	if len(h.prompt.inputReqs) != 2 {
		t.Fatalf("folder input shown %d times, want 2", len(h.prompt.inputReqs))
	}
	first, second := h.prompt.inputReqs[0], h.prompt.inputReqs[1]
	if !first.AllowBack {
		t.Error("folder input should allow back")
	}
	if second.Value != first.Value {
		t.Errorf("folder suggestion after back = %q, want previous %q", second.Value, first.Value)
	}
	if res.Path != target || res.Opened {
		t.Errorf("result = %+v", res)
	}
	if len(h.opener.opened) != 0 {
		t.Error("declined open should not open")
	}
}

func TestCreateWorktreeCancelledCopyKeepsWorktree(t *testing.T) {
	h := newHarness(t)
	if err := os.MkdirAll(h.main, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.main, ".env"), []byte("X=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.cfg.Worktree.CopyInclude = []string{".env"}
	h.cfg.Worktree.PostCreateCommand = "make setup"
	h.progress.cancelOn = "Copying"

	target := filepath.Join(filepath.Dir(h.main), "wt")
	h.runner.On("rev-parse --verify --quiet refs/heads/feature", gittest.Response{Stdout: "abc\n"})
	h.runner.On("worktree add "+target+" feature", gittest.Response{})

	open := false
	res, err := h.orchestrator().CreateWorktree(context.Background(), CreateOptions{
		Dir: h.main, Ref: "feature", Path: target, Yes: true, Open: &open,
	})
	if err != nil {
		t.Fatalf("CreateWorktree() error = %v, want nil", err)
	}
	if res.Path != target {
		t.Errorf("Path = %q, want %q", res.Path, target)
	}
	if len(h.shell.commands) != 0 {
		t.Errorf("post-create command ran after cancelled copy: %v", h.shell.commands)
	}
	if got := h.notify.at(LevelError); len(got) != 0 {
		t.Errorf("error notifications = %v", got)
	}
}

func TestCreateWorktreeCopiesAndRunsHook(t *testing.T) {
	h := newHarness(t)
	target := filepath.Join(filepath.Dir(h.main), "wt")
	if err := os.MkdirAll(h.main, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.main, ".env"), []byte("X=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.cfg.Worktree.CopyInclude = []string{".env"}
	h.cfg.Worktree.PostCreateCommand = "make setup"

	// The fake does not create the directory, so the test does.
	h.runner.Hook = func(_ context.Context, call gittest.Call) (gittest.Response, bool) {
		if len(call.Args) > 1 && call.Args[0] == "worktree" && call.Args[1] == "add" {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return gittest.Response{Stderr: err.Error(), Exit: 1}, true
			}
			return gittest.Response{}, true
		}
		return gittest.Response{}, false
	}

	open := false
	res, err := h.orchestrator().CreateWorktree(context.Background(), CreateOptions{
		Dir: h.main, Ref: "v1.0", Path: target, Yes: true, Open: &open,
	})
	if err != nil {
		t.Fatalf("CreateWorktree() error = %v", err)
	}
	if len(res.Copied) != 1 || res.Copied[0] != ".env" {
		t.Errorf("Copied = %v", res.Copied)
	}
	if _, err := os.Stat(filepath.Join(target, ".env")); err != nil {
		t.Errorf(".env not copied: %v", err)
	}
	if len(h.shell.commands) != 1 || h.shell.commands[0] != target+": make setup" {
		t.Errorf("hook commands = %v", h.shell.commands)
	}
	if !h.runner.Called("worktree add --detach " + target + " v1.0") {
		t.Errorf("tag should be checked out detached; calls = %v", h.runner.Calls())
	}
}

func TestCreateWorktreeDismissedPickerIsSilent(t *testing.T) {
	h := newHarness(t)
	h.cache.refs[h.main] = []git.RefRecord{{git.FieldRefName: "refs/heads/main"}}

	_, err := h.orchestrator().CreateWorktree(context.Background(), CreateOptions{Dir: h.main})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if len(h.notify.notes) != 0 {
		t.Errorf("notifications = %v", h.notify.notes)
	}
}

func TestValidateTargetDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"empty", "  ", false},
		{"existing dir", dir, false},
		{"existing file", file, false},
		{"under a file", filepath.Join(file, "sub"), false},
		{"new", filepath.Join(dir, "new"), true},
		{"new nested", filepath.Join(dir, "a", "b"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ValidateTargetDir(tt.path)
			if (msg == "") != tt.ok {
				t.Errorf("ValidateTargetDir(%q) = %q", tt.path, msg)
			}
		})
	}
}

func TestCreateStateString(t *testing.T) {
	if SelectingFolder.String() != "selecting-folder" || Done.String() != "done" {
		t.Error("unexpected state names")
	}
}
