// pattern: Imperative Shell
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	lockFileName = "wtsync.lock"
	portFileName = "wtsync.port"
)

// ErrAlreadyRunning is returned by Lock when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another wtsync daemon is already running")

// Lock acquires an exclusive file lock for single-instance enforcement.
// Returns the flock handle (caller must defer Cleanup) or ErrAlreadyRunning
// if another instance already holds the lock.
func Lock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return fl, nil
}

// WritePort writes the web server's listener address to the port file.
func WritePort(dataDir, addr string) error {
	portPath := filepath.Join(dataDir, portFileName)
	return os.WriteFile(portPath, []byte(addr), 0600)
}

// Cleanup removes the port file and releases the file lock.
func Cleanup(dataDir string, fl *flock.Flock) {
	portPath := filepath.Join(dataDir, portFileName)
	_ = os.Remove(portPath)
	if fl != nil {
		_ = fl.Unlock()
	}
}
