// pattern: Imperative Shell

// Package watch keeps one fsnotify watcher per registered repository and
// publishes RepoChanged when relevant metadata changes.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"wtsync/internal/events"
	"wtsync/internal/logging"
	"wtsync/internal/worktree"
)

// Relevant reports whether rel, a slash-separated path relative to a .git
// directory, is a file whose change affects worktree or ref listings.
func Relevant(rel string) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	switch rel {
	case "config", "index", "HEAD":
		return true
	}
	if strings.HasPrefix(rel, "refs/remotes/") {
		return !strings.HasSuffix(rel, ".lock")
	}
	parts := strings.Split(rel, "/")
	if len(parts) == 3 && parts[0] == "worktrees" {
		switch parts[2] {
		case "HEAD", "index", "locked", "gitdir":
			return true
		}
	}
	// A worktrees/<name> directory appearing or vanishing.
	return len(parts) == 2 && parts[0] == "worktrees"
}

// Key returns the registry key for root.
func Key(root string) string {
	return worktree.NormalizePath(root) + "/.git"
}

type repoWatch struct {
	root    string
	gitDir  string
	watcher *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}
}

// Registry owns the watchers. Adding a root twice is a no-op; removing it
// disposes its watcher.
type Registry struct {
	bus    *events.Bus
	logger *logging.ScopedLogger

	mu      sync.Mutex
	watches map[string]*repoWatch
	closed  bool
}

// NewRegistry creates an empty Registry publishing on bus.
func NewRegistry(bus *events.Bus, logger *logging.ScopedLogger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{bus: bus, logger: logger, watches: make(map[string]*repoWatch)}
}

// Add starts watching root's .git directory. It returns false without error
// when the directory does not exist or root is already watched.
func (r *Registry) Add(root string) (bool, error) {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return false, nil
	}
	key := Key(root)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, errors.New("watch registry closed")
	}
	if _, ok := r.watches[key]; ok {
		return false, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	rw := &repoWatch{root: root, gitDir: gitDir, watcher: w, done: make(chan struct{}), stopped: make(chan struct{})}
	if err := w.Add(gitDir); err != nil {
		w.Close()
		return false, fmt.Errorf("failed to watch %s: %w", gitDir, err)
	}
	for _, sub := range []string{filepath.Join(gitDir, "refs", "remotes"), filepath.Join(gitDir, "worktrees")} {
		r.addTree(rw, sub)
	}

	r.watches[key] = rw
	go r.loop(rw)
	r.logger.Debug("watch added", "root", root)
	return true, nil
}

// addTree watches dir and every directory below it. Missing dirs are fine.
func (r *Registry) addTree(rw *repoWatch, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := rw.watcher.Add(p); err != nil {
				r.logger.Warn("watch add failed", "path", p, "error", err)
			}
		}
		return nil
	})
}

func (r *Registry) loop(rw *repoWatch) {
	defer close(rw.stopped)
	for {
		select {
		case <-rw.done:
			return
		case ev, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			r.handle(rw, ev)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("watch error", "root", rw.root, "error", err)
		}
	}
}

func (r *Registry) handle(rw *repoWatch, ev fsnotify.Event) {
	rel, err := filepath.Rel(rw.gitDir, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if ev.Has(fsnotify.Create) && (strings.HasPrefix(rel, "refs/remotes") || strings.HasPrefix(rel, "worktrees")) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			r.addTree(rw, ev.Name)
		}
	}
	// refs and worktrees directories are created lazily by git.
	if ev.Has(fsnotify.Create) && (rel == "refs" || rel == "refs/remotes" || rel == "worktrees") {
		r.addTree(rw, ev.Name)
		if rel == "refs" {
			r.addTree(rw, filepath.Join(ev.Name, "remotes"))
		}
	}

	if !Relevant(rel) {
		return
	}
	if ev.Op == fsnotify.Chmod {
		return
	}
	if r.logger.DebugEnabled() {
		r.logger.Debug("repo metadata changed", "root", rw.root, "path", rel, "op", ev.Op.String())
	}
	r.bus.Publish(events.RepoChanged{Root: rw.root, Path: ev.Name})
}

// Remove stops watching root. It reports whether root was watched.
func (r *Registry) Remove(root string) bool {
	r.mu.Lock()
	rw, ok := r.watches[Key(root)]
	delete(r.watches, Key(root))
	r.mu.Unlock()
	if !ok {
		return false
	}
	stop(rw)
	r.logger.Debug("watch removed", "root", root)
	return true
}

func stop(rw *repoWatch) {
	close(rw.done)
	rw.watcher.Close()
	<-rw.stopped
}

// Has reports whether root is watched.
func (r *Registry) Has(root string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watches[Key(root)]
	return ok
}

// Roots returns the watched roots sorted by key.
func (r *Registry) Roots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.watches))
	for k := range r.watches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	roots := make([]string, len(keys))
	for i, k := range keys {
		roots[i] = r.watches[k].root
	}
	return roots
}

// Sync makes the watched set equal roots: missing roots are added, roots no
// longer listed are removed.
func (r *Registry) Sync(roots []string) {
	want := make(map[string]bool, len(roots))
	for _, root := range roots {
		want[Key(root)] = true
		if _, err := r.Add(root); err != nil {
			r.logger.Warn("watch sync add failed", "root", root, "error", err)
		}
	}
	for _, root := range r.Roots() {
		if !want[Key(root)] {
			r.Remove(root)
		}
	}
}

// Close disposes every watcher. The registry cannot be reused.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	watches := r.watches
	r.watches = map[string]*repoWatch{}
	r.mu.Unlock()

	for _, rw := range watches {
		stop(rw)
	}
}
