// pattern: Imperative Shell

// Package folders manages the registered repository roots, favorites and
// recently opened items kept in the Global state scope.
package folders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"wtsync/internal/events"
	"wtsync/internal/logging"
	"wtsync/internal/state"
	"wtsync/internal/worktree"
)

var (
	ErrNotDirectory  = errors.New("not a directory")
	ErrNotRepository = errors.New("not a git repository")
	ErrDuplicate     = errors.New("folder already registered")
	ErrNotFound      = errors.New("folder not registered")
)

// GitFolder is a registered repository root.
type GitFolder struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	DefaultOpen bool   `json:"defaultOpen"`
}

// ItemType classifies a recent or favorite item.
type ItemType string

const (
	TypeFolder    ItemType = "folder"
	TypeFile      ItemType = "file"
	TypeWorkspace ItemType = "workspace"
)

// Item is a favorite or recently opened location.
type Item struct {
	Label string   `json:"label"`
	Path  string   `json:"path"`
	Type  ItemType `json:"type"`
}

// MaxRecents caps the recent items list.
const MaxRecents = 20

// RepoResolver finds the main folder of the repository containing a path.
type RepoResolver interface {
	MainFolder(ctx context.Context, dir string) string
}

// Registry reads and writes folder lists through a state.Store.
type Registry struct {
	store  *state.Store
	repo   RepoResolver
	bus    *events.Bus
	logger *logging.ScopedLogger

	mu sync.Mutex // serializes read-modify-write cycles
}

// NewRegistry creates a Registry.
func NewRegistry(store *state.Store, repo RepoResolver, bus *events.Bus, logger *logging.ScopedLogger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{store: store, repo: repo, bus: bus, logger: logger}
}

// List returns the registered folders in registration order.
func (r *Registry) List() ([]GitFolder, error) {
	var list []GitFolder
	if _, err := r.store.Get(state.Global, state.KeyGitFolders, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Find returns the registered folder whose path matches p.
func (r *Registry) Find(p string) (GitFolder, bool) {
	list, err := r.List()
	if err != nil {
		return GitFolder{}, false
	}
	i := indexOf(list, p)
	if i < 0 {
		return GitFolder{}, false
	}
	return list[i], true
}

func indexOf(list []GitFolder, p string) int {
	return slices.IndexFunc(list, func(f GitFolder) bool { return worktree.ComparePath(f.Path, p) })
}

// Add registers the repository containing p under name (defaults to the
// directory name). The main folder is stored, not p itself. On any error the
// stored list is left untouched.
func (r *Registry) Add(ctx context.Context, p, name string) (GitFolder, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return GitFolder{}, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return GitFolder{}, fmt.Errorf("%s: %w", abs, ErrNotDirectory)
	}
	main := r.repo.MainFolder(ctx, abs)
	if main == "" {
		return GitFolder{}, fmt.Errorf("%s: %w", abs, ErrNotRepository)
	}
	if name == "" {
		name = filepath.Base(main)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.List()
	if err != nil {
		return GitFolder{}, err
	}
	if indexOf(list, main) >= 0 {
		return GitFolder{}, fmt.Errorf("%s: %w", main, ErrDuplicate)
	}
	folder := GitFolder{Name: name, Path: main}
	if err := r.store.Set(state.Global, state.KeyGitFolders, append(list, folder)); err != nil {
		return GitFolder{}, err
	}
	r.logger.Info("git folder added", "path", main, "name", name)
	r.bus.Publish(events.FoldersChanged{Added: main})
	return folder, nil
}

// Remove unregisters p.
func (r *Registry) Remove(p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.List()
	if err != nil {
		return err
	}
	i := indexOf(list, p)
	if i < 0 {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	removed := list[i].Path
	if err := r.store.Set(state.Global, state.KeyGitFolders, slices.Delete(list, i, i+1)); err != nil {
		return err
	}
	r.logger.Info("git folder removed", "path", removed)
	r.bus.Publish(events.FoldersChanged{Removed: removed})
	return nil
}

// Rename changes the display name of p.
func (r *Registry) Rename(p, name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	return r.modify(p, func(f *GitFolder) { f.Name = name })
}

// ToggleOpen flips DefaultOpen for p and returns the new value.
func (r *Registry) ToggleOpen(p string) (bool, error) {
	var open bool
	err := r.modify(p, func(f *GitFolder) {
		f.DefaultOpen = !f.DefaultOpen
		open = f.DefaultOpen
	})
	return open, err
}

func (r *Registry) modify(p string, fn func(*GitFolder)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.List()
	if err != nil {
		return err
	}
	i := indexOf(list, p)
	if i < 0 {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	fn(&list[i])
	if err := r.store.Set(state.Global, state.KeyGitFolders, list); err != nil {
		return err
	}
	r.bus.Publish(events.FoldersChanged{})
	return nil
}

// Favorites returns the user-curated items.
func (r *Registry) Favorites() ([]Item, error) {
	return r.items(state.KeyFavorites)
}

// AddFavorite appends item unless its path is already a favorite.
func (r *Registry) AddFavorite(item Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.items(state.KeyFavorites)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(items, func(it Item) bool { return worktree.ComparePath(it.Path, item.Path) }) {
		return nil
	}
	return r.store.Set(state.Global, state.KeyFavorites, append(items, normalizeItem(item)))
}

// RemoveFavorite drops the favorite at p.
func (r *Registry) RemoveFavorite(p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.items(state.KeyFavorites)
	if err != nil {
		return err
	}
	n := len(items)
	items = slices.DeleteFunc(items, func(it Item) bool { return worktree.ComparePath(it.Path, p) })
	if len(items) == n {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return r.store.Set(state.Global, state.KeyFavorites, items)
}

// Recents returns recently opened items, newest first.
func (r *Registry) Recents() ([]Item, error) {
	return r.items(state.KeyRecentItems)
}

// RecordRecent moves item to the front of the recent list.
func (r *Registry) RecordRecent(item Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.items(state.KeyRecentItems)
	if err != nil {
		return err
	}
	items = slices.DeleteFunc(items, func(it Item) bool { return worktree.ComparePath(it.Path, item.Path) })
	items = append([]Item{normalizeItem(item)}, items...)
	if len(items) > MaxRecents {
		items = items[:MaxRecents]
	}
	return r.store.Set(state.Global, state.KeyRecentItems, items)
}

func (r *Registry) items(key string) ([]Item, error) {
	var items []Item
	if _, err := r.store.Get(state.Global, key, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func normalizeItem(item Item) Item {
	if item.Type == "" {
		item.Type = TypeFolder
	}
	if item.Label == "" {
		item.Label = filepath.Base(item.Path)
	}
	return item
}
