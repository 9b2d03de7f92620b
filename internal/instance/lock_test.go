package instance

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLock_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "wtsync")
	fl, err := Lock(dir)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer Cleanup(dir, fl)

	if _, err := os.Stat(filepath.Join(dir, lockFileName)); err != nil {
		t.Errorf("lock file missing: %v", err)
	}
}

func TestLock_SingleDaemonPerDataDir(t *testing.T) {
	dir := t.TempDir()
	first, err := Lock(dir)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if _, err := Lock(dir); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Lock() error = %v, want ErrAlreadyRunning", err)
	}

	// A different data directory is an independent daemon.
	other := t.TempDir()
	fl, err := Lock(other)
	if err != nil {
		t.Fatalf("Lock(other) error = %v", err)
	}
	Cleanup(other, fl)

	Cleanup(dir, first)
	again, err := Lock(dir)
	if err != nil {
		t.Fatalf("Lock() after Cleanup error = %v", err)
	}
	Cleanup(dir, again)
}

func TestWritePort_RemovedByCleanup(t *testing.T) {
	dir := t.TempDir()
	fl, err := Lock(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := WritePort(dir, "127.0.0.1:43117"); err != nil {
		t.Fatalf("WritePort() error = %v", err)
	}
	port := filepath.Join(dir, portFileName)
	if data, err := os.ReadFile(port); err != nil || string(data) != "127.0.0.1:43117" {
		t.Fatalf("port file = %q, %v", data, err)
	}

	Cleanup(dir, fl)
	if _, err := os.Stat(port); !os.IsNotExist(err) {
		t.Errorf("port file survived Cleanup: %v", err)
	}
}
