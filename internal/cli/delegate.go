// pattern: Imperative Shell
package cli

import (
	"time"

	"wtsync/internal/instance"
)

// Delegate discovers a running daemon so a command can hand work to it.
type Delegate struct {
	// DataDir holds the daemon's lock and port files.
	DataDir string

	// Discover defaults to instance.Discover. Overridable for testing.
	Discover func(dataDir string) (string, error)

	// ClientTimeout is the HTTP client timeout. Defaults to 60 seconds,
	// enough for a refresh that waits for a full rebuild.
	ClientTimeout time.Duration
}

// Client discovers the daemon and returns a client for it together with its
// base URL. The error wraps instance.ErrNotRunning when no daemon runs.
func (d *Delegate) Client() (*instance.Client, string, error) {
	discover := d.Discover
	if discover == nil {
		discover = instance.Discover
	}
	timeout := d.ClientTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	baseURL, err := discover(d.DataDir)
	if err != nil {
		return nil, "", err
	}
	return instance.NewClientWithTimeout(baseURL, timeout), baseURL, nil
}
