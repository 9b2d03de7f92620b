// pattern: Imperative Shell

// Package state persists JSON values by key in a process-wide scope and a
// per-workspace scope. Files are shared between processes: every access
// takes a file lock and every write replaces the file atomically.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"wtsync/internal/events"
	"wtsync/internal/logging"
	"wtsync/internal/worktree"
)

// Scope selects the file a key lives in.
type Scope string

const (
	// Global holds registered repositories, favorites, recents, cached ref
	// lists and the all-repositories worktree cache.
	Global Scope = "global"
	// Workspace holds values tied to the current set of workspace folders.
	Workspace Scope = "workspace"
)

// Well-known keys.
const (
	KeyGitFolders       = "gitFolders"
	KeyFavorites        = "favorites"
	KeyRecentItems      = "recentItems"
	KeyWorktreeCache    = "worktreeCache"
	KeyMainFolders      = "mainFolders"
	KeyWorkspaceFolders = "workspaceFolders"
	keyRefListPrefix    = "refList:"
)

// RefListKey is the Global key caching the ref list of one main folder.
func RefListKey(mainFolder string) string {
	return keyRefListPrefix + worktree.NormalizePath(mainFolder)
}

// ErrUnknownScope is returned for a scope other than Global or Workspace.
var ErrUnknownScope = errors.New("unknown state scope")

// Store reads and writes scope files under a data directory.
type Store struct {
	dir    string
	bus    *events.Bus
	logger *logging.ScopedLogger

	mu          sync.Mutex // guards workspaceID
	workspaceID string
}

// Open creates dataDir if needed and returns a Store whose Workspace scope
// is bound to workspaceFolders.
func Open(dataDir string, workspaceFolders []string, bus *events.Bus, logger *logging.ScopedLogger) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "workspaces"), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &Store{
		dir:         dataDir,
		bus:         bus,
		logger:      logger,
		workspaceID: WorkspaceID(workspaceFolders),
	}, nil
}

// WorkspaceID identifies a set of workspace folders independent of order,
// case and separator style.
func WorkspaceID(folders []string) string {
	norm := make([]string, 0, len(folders))
	for _, f := range folders {
		f = strings.ToLower(filepath.ToSlash(filepath.Clean(f)))
		if f != "" && f != "." {
			norm = append(norm, f)
		}
	}
	slices.Sort(norm)
	norm = slices.Compact(norm)
	sum := sha256.Sum256([]byte(strings.Join(norm, "\n")))
	return hex.EncodeToString(sum[:8])
}

// BindWorkspace switches the Workspace scope to another folder set.
func (s *Store) BindWorkspace(folders []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaceID = WorkspaceID(folders)
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(scope Scope) (string, error) {
	switch scope {
	case Global:
		return filepath.Join(s.dir, "global.json"), nil
	case Workspace:
		s.mu.Lock()
		id := s.workspaceID
		s.mu.Unlock()
		return filepath.Join(s.dir, "workspaces", id+".json"), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
}

// Get decodes the value stored at key into v. found is false when the key
// is absent.
func (s *Store) Get(scope Scope, key string, v any) (found bool, err error) {
	file, err := s.path(scope)
	if err != nil {
		return false, err
	}
	fl := flock.New(file + ".lock")
	if err := fl.RLock(); err != nil {
		return false, fmt.Errorf("locking %s: %w", file, err)
	}
	defer func() { _ = fl.Unlock() }()

	values, err := readFile(file)
	if err != nil {
		return false, err
	}
	raw, ok := values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding %s/%s: %w", scope, key, err)
	}
	return true, nil
}

// Keys returns the keys present in scope, sorted.
func (s *Store) Keys(scope Scope) ([]string, error) {
	file, err := s.path(scope)
	if err != nil {
		return nil, err
	}
	fl := flock.New(file + ".lock")
	if err := fl.RLock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", file, err)
	}
	defer func() { _ = fl.Unlock() }()

	values, err := readFile(file)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Set stores v at key and publishes StateChanged.
func (s *Store) Set(scope Scope, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", scope, key, err)
	}
	return s.update(scope, key, func(values map[string]json.RawMessage) {
		values[key] = raw
	})
}

// Delete removes key and publishes StateChanged. Deleting a missing key is
// not an error.
func (s *Store) Delete(scope Scope, key string) error {
	return s.update(scope, key, func(values map[string]json.RawMessage) {
		delete(values, key)
	})
}

func (s *Store) update(scope Scope, key string, mutate func(map[string]json.RawMessage)) error {
	file, err := s.path(scope)
	if err != nil {
		return err
	}
	fl := flock.New(file + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", file, err)
	}
	values, err := readFile(file)
	if err == nil {
		mutate(values)
		err = writeFile(file, values)
	}
	_ = fl.Unlock()
	if err != nil {
		s.logger.Error("state write failed", "scope", string(scope), "key", key, "error", err)
		return err
	}

	s.logger.Debug("state written", "scope", string(scope), "key", key)
	s.bus.Publish(events.StateChanged{Scope: string(scope), Key: key})
	return nil
}

func readFile(file string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	values := map[string]json.RawMessage{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	return values, nil
}

func writeFile(file string, values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(file), filepath.Base(file)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", file, err)
	}
	return nil
}
