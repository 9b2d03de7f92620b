package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wtsync/internal/events"
	"wtsync/internal/logging"
)

func TestRelevant(t *testing.T) {
	tests := map[string]bool{
		"config":                         true,
		"index":                          true,
		"HEAD":                           true,
		"index.lock":                     false,
		"refs/remotes/origin/main":       true,
		"refs/remotes/origin/main.lock":  false,
		"refs/heads/main":                false,
		"worktrees/feat/HEAD":            true,
		"worktrees/feat/index":           true,
		"worktrees/feat/locked":          true,
		"worktrees/feat/gitdir":          true,
		"worktrees/feat/ORIG_HEAD":       false,
		"worktrees/feat":                 true,
		"objects/ab/cdef":                false,
		"logs/HEAD":                      false,
		"worktrees/feat/logs/HEAD":       false,
	}
	for rel, want := range tests {
		if got := Relevant(rel); got != want {
			t.Errorf("Relevant(%q) = %v, want %v", rel, got, want)
		}
	}
}

func TestKey(t *testing.T) {
	if Key("/Repo/") != Key("/repo") {
		t.Error("Key should normalize case and trailing separators")
	}
}

func makeGitDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git", "refs", "remotes", "origin"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func waitEvent(t *testing.T, sub *events.Subscription, root string) events.RepoChanged {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-sub.C():
			if rc, ok := ev.(events.RepoChanged); ok && rc.Root == root {
				return rc
			}
		case <-timeout:
			t.Fatal("no RepoChanged event")
		}
	}
}

func TestRegistry_AddPublishesChanges(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(32, events.KindRepoChanged)

	reg := NewRegistry(bus, logging.NopLogger())
	defer reg.Close()

	root := makeGitDir(t)
	added, err := reg.Add(root)
	if err != nil || !added {
		t.Fatalf("Add() = %v, %v", added, err)
	}
	if again, _ := reg.Add(root); again {
		t.Error("second Add() should be a no-op")
	}

	if err := os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, root)

	ref := filepath.Join(root, ".git", "refs", "remotes", "origin", "main")
	if err := os.WriteFile(ref, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitPath(t, sub, root, ref)
}

// waitPath skips events for other files until path is reported.
func waitPath(t *testing.T, sub *events.Subscription, root, path string) {
	t.Helper()
	for {
		if ev := waitEvent(t, sub, root); ev.Path == path {
			return
		}
	}
}

func TestRegistry_NewWorktreeDirIsWatched(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(32, events.KindRepoChanged)
	reg := NewRegistry(bus, nil)
	defer reg.Close()

	root := makeGitDir(t)
	if _, err := reg.Add(root); err != nil {
		t.Fatal(err)
	}

	wtDir := filepath.Join(root, ".git", "worktrees", "feat")
	if err := os.MkdirAll(wtDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to pick up the new directories.
	time.Sleep(200 * time.Millisecond)
	locked := filepath.Join(wtDir, "locked")
	if err := os.WriteFile(locked, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	waitPath(t, sub, root, locked)
}

func TestRegistry_SkipsMissingGitDir(t *testing.T) {
	reg := NewRegistry(nil, nil)
	defer reg.Close()
	added, err := reg.Add(t.TempDir())
	if err != nil || added {
		t.Errorf("Add(no .git) = %v, %v", added, err)
	}
}

func TestRegistry_RemoveSyncClose(t *testing.T) {
	reg := NewRegistry(nil, nil)
	a, b := makeGitDir(t), makeGitDir(t)

	reg.Sync([]string{a, b})
	if len(reg.Roots()) != 2 {
		t.Fatalf("Roots() = %v", reg.Roots())
	}
	reg.Sync([]string{b})
	if reg.Has(a) || !reg.Has(b) {
		t.Errorf("after Sync: has a=%v b=%v", reg.Has(a), reg.Has(b))
	}
	if !reg.Remove(b) || reg.Remove(b) {
		t.Error("Remove should report true once")
	}

	_, _ = reg.Add(a)
	reg.Close()
	reg.Close()
	if len(reg.Roots()) != 0 {
		t.Error("Close should dispose all watchers")
	}
	if _, err := reg.Add(a); err == nil {
		t.Error("Add after Close should fail")
	}
}
