package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestCompletionFirstSettlementWins(t *testing.T) {
	c := NewCompletion[string]()
	if !c.Resolve("a") {
		t.Fatal("first Resolve should win")
	}
	if c.Resolve("b") || c.Reject(errors.New("late")) {
		t.Fatal("later settlements should lose")
	}
	v, err := c.Wait(context.Background())
	if v != "a" || err != nil {
		t.Errorf("Wait() = %q, %v", v, err)
	}
}

func TestCompletionWaitCancelled(t *testing.T) {
	c := NewCompletion[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Wait(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("Wait() error = %v, want ErrCancelled", err)
	}
	select {
	case <-c.Done():
		t.Error("Done closed without settlement")
	default:
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "fatal: nope", 50, "fatal: nope"},
		{"multiline collapsed", "error:\n  first\n  second", 50, "error: first second"},
		{"cut", "abcdefghij", 5, "abcd…"},
		{"no limit", "abcdefghij", 0, "abcdefghij"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestPartialErrorUnwrap(t *testing.T) {
	inner := errors.New("copy failed")
	err := &PartialError{Action: "Create worktree", Failures: []error{inner}}
	if !errors.Is(err, inner) {
		t.Error("PartialError should unwrap to its failures")
	}
}

func TestMinLevel(t *testing.T) {
	n := &fakeNotifier{}
	filtered := MinLevel(n, LevelWarn)
	filtered.Notify(LevelInfo, "i")
	filtered.Notify(LevelWarn, "w")
	filtered.Notify(LevelError, "e")
	if len(n.notes) != 2 || n.notes[0].msg != "w" {
		t.Errorf("notes = %v", n.notes)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel should reject unknown levels")
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCopyFiles(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, ".env"), "A=1")
	writeFile(t, filepath.Join(src, "config", "local.json"), "{}")
	writeFile(t, filepath.Join(src, "node_modules", "x", "local.json"), "{}")
	writeFile(t, filepath.Join(src, ".git", "config"), "")
	writeFile(t, filepath.Join(src, "README.md"), "")
	writeFile(t, filepath.Join(dst, ".env"), "KEEP")

	res, err := CopyFiles(context.Background(), src, dst,
		[]string{".env", "**/*.json", "**/config"},
		[]string{"**/node_modules/**"})
	if err != nil {
		t.Fatalf("CopyFiles() error = %v", err)
	}
	slices.Sort(res.Copied)
	if !slices.Equal(res.Copied, []string{"config/local.json"}) {
		t.Errorf("Copied = %v", res.Copied)
	}
	if data, _ := os.ReadFile(filepath.Join(dst, ".env")); string(data) != "KEEP" {
		t.Error("existing file overwritten")
	}
	if _, err := os.Stat(filepath.Join(dst, ".git")); !os.IsNotExist(err) {
		t.Error(".git should never be copied")
	}
}

func TestCopyFilesCancelled(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.env"), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CopyFiles(ctx, src, t.TempDir(), []string{"*.env"}, nil); !errors.Is(err, ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
}
