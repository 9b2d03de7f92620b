// pattern: Imperative Shell
package instance

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const healthTimeout = 2 * time.Second

// ErrNotRunning is returned by Discover when no daemon holds the lock.
var ErrNotRunning = errors.New("no running wtsync daemon found (start one with 'wtsync serve')")

// Discover checks whether a running daemon exists and returns its base URL
// (e.g. "http://127.0.0.1:12345"). Returns ErrNotRunning if no daemon is
// running, or another error if the port file is missing or the health check
// fails.
func Discover(dataDir string) (string, error) {
	// Try to acquire the lock; if we succeed, no instance is running.
	lockPath := filepath.Join(dataDir, lockFileName)
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return "", ErrNotRunning
	}
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return "", fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		_ = fl.Unlock()
		return "", ErrNotRunning
	}

	portPath := filepath.Join(dataDir, portFileName)
	data, err := os.ReadFile(portPath)
	if err != nil {
		return "", fmt.Errorf("wtsync daemon detected but port file missing: %w", err)
	}

	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return "", fmt.Errorf("wtsync port file is empty")
	}

	baseURL := fmt.Sprintf("http://%s", addr)

	client := &http.Client{Timeout: healthTimeout}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return "", fmt.Errorf("wtsync daemon not responding: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wtsync health check failed (status %d)", resp.StatusCode)
	}

	return baseURL, nil
}
