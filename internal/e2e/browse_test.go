//go:build e2e
// +build e2e

package e2e

import (
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"wtsync/internal/cache"
	"wtsync/internal/config"
	"wtsync/internal/tui"
)

func TestBrowseRefreshAndChoose(t *testing.T) {
	SkipIfGitMissing(t)
	main := InitRepo(t, t.TempDir(), "cli")
	linked := filepath.Join(filepath.Dir(main), "cli-fix")
	Git(t, main, "worktree", "add", "-q", "-b", "fix", linked)

	s := NewStack(t, config.DefaultConfig(), nil, false)
	if _, err := s.Folders.Add(WithTimeout(t, 30*time.Second), main, ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	r := NewTUITestRunner(t, tui.NewModel(s.Cache, s.Builder, nil, config.DefaultTheme, cache.Global))
	r.Init()
	r.SendWindowSize(120, 40)

	if got := len(r.Model().Items()); got != 0 {
		t.Fatalf("items before refresh = %d, want 0", got)
	}

	r.PressKey('r')
	if got := len(r.Model().Items()); got != 2 {
		t.Fatalf("items after refresh = %d, want 2", got)
	}

	r.PressSpecialKey(tea.KeyDown)
	r.PressSpecialKey(tea.KeyEnter)
	it, ok := r.Model().Chosen()
	if !ok {
		t.Fatal("Enter chose nothing")
	}
	if it.Path != linked || it.Branch != "fix" {
		t.Errorf("Chosen() = %+v, want %s on fix", it, linked)
	}
}
