// pattern: Imperative Shell

package logging

import (
	"testing"
)

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Debug("test")
	logger.Info("test")
	logger.Warn("test")
	logger.Error("test")
	if logger.DebugEnabled() {
		t.Error("NopLogger should not report DEBUG as enabled")
	}
	if logger.With("key", "value") == nil {
		t.Fatal("With() returned nil")
	}
}

func TestNopProvider(t *testing.T) {
	var p LoggerProvider = NopProvider{}
	if p.For("git") == nil {
		t.Fatal("For() returned nil")
	}
}

func TestTestLogManager_Drain(t *testing.T) {
	lm := NewTestLogManager(10)
	defer func() { _ = lm.Close() }()

	lm.For("git").Debug("first")
	lm.For("cache").With("scope", "global").Info("second")

	entries := lm.Drain()
	if len(entries) != 2 {
		t.Fatalf("Drain() returned %d entries, want 2", len(entries))
	}
	if entries[0].Scope != "git" || entries[0].Level != "DEBUG" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Fields["scope"] != "global" {
		t.Errorf("entries[1].Fields = %v, want scope=global", entries[1].Fields)
	}
	if len(lm.Drain()) != 0 {
		t.Error("second Drain() should be empty")
	}
}

func TestTestLogManager_CachesLoggers(t *testing.T) {
	lm := NewTestLogManager(1)
	defer func() { _ = lm.Close() }()

	if lm.For("a") != lm.For("a") {
		t.Error("For() should return the cached logger for the same scope")
	}
}
