// pattern: Imperative Shell

// Package cache holds the worktree list snapshots backing pickers: one for
// every registered repository and one for the repositories of the open
// workspace. Snapshots are replaced whole; readers never see a mix.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"wtsync/internal/config"
	"wtsync/internal/debounce"
	"wtsync/internal/events"
	"wtsync/internal/folders"
	"wtsync/internal/git"
	"wtsync/internal/logging"
	"wtsync/internal/state"
	"wtsync/internal/watch"
	"wtsync/internal/worktree"
)

// Scope selects a snapshot.
type Scope string

const (
	Global    Scope = "global"
	Workspace Scope = "workspace"
)

// ErrClosed is returned by Refresh after Close.
var ErrClosed = errors.New("cache service closed")

// Scopes lists every scope in rebuild order.
var Scopes = []Scope{Global, Workspace}

// ParseScope accepts "global", "workspace" or "" (Global).
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", Global:
		return Global, nil
	case Workspace:
		return Workspace, nil
	}
	return "", fmt.Errorf("unknown cache scope %q", s)
}

func (s Scope) stateScope() state.Scope {
	if s == Workspace {
		return state.Workspace
	}
	return state.Global
}

// Item is a cached worktree with the alias of its repository.
type Item struct {
	worktree.Descriptor
	Label string `json:"label"`
}

// Lister builds the worktree list of one repository.
type Lister interface {
	List(ctx context.Context, root string, opts worktree.ListOptions) ([]worktree.Descriptor, error)
}

// FolderSource lists the registered repositories.
type FolderSource interface {
	List() ([]folders.GitFolder, error)
}

// Resolver maps a workspace folder to its repository's main folder.
type Resolver interface {
	MainFolder(ctx context.Context, dir string) string
}

// Watcher is kept in sync with the tracked roots.
type Watcher interface {
	Sync(roots []string)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store    *state.Store
	Lister   Lister
	Folders  FolderSource
	Resolver Resolver
	Watcher  Watcher // optional
	Bus      *events.Bus
	Logger   *logging.ScopedLogger
}

// Options tune invalidation.
type Options struct {
	Debounce        time.Duration
	RefreshThrottle time.Duration
	StartupGrace    time.Duration
}

// OptionsFromConfig copies the cache section of cfg.
func OptionsFromConfig(cfg config.CacheConfig) Options {
	return Options{
		Debounce:        cfg.Debounce,
		RefreshThrottle: cfg.RefreshThrottle,
		StartupGrace:    cfg.StartupGrace,
	}
}

type tracked struct {
	root  string
	label string
}

// snapshot is immutable once published.
type snapshot struct {
	entries map[string][]Item // key: NormalizePath(root)
	items   []Item
}

type scopeCache struct {
	scope    Scope
	snap     atomic.Pointer[snapshot]
	throttle *debounce.Throttler

	mu         sync.Mutex
	running    bool
	dirtyAll   bool
	dirtyRoots map[string]bool
	waiters    []chan struct{}
	fromDisk   bool
	loadedAt   time.Time
}

// Service owns both snapshots and their invalidation.
type Service struct {
	deps Deps
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	scopes       map[Scope]*scopeCache
	repoDebounce *debounce.Keyed[string]

	wsMu        sync.Mutex
	mainFolders []string

	startOnce sync.Once
	closeOnce sync.Once
	pending   *pending
	unhandle  func()
}

// pending collects invalidation triggers between dispatcher passes. Repeated
// triggers coalesce; none are lost.
type pending struct {
	mu      sync.Mutex
	roots   map[string]struct{}
	folders bool
	wake    chan struct{}
}

func newPending() *pending {
	return &pending{roots: map[string]struct{}{}, wake: make(chan struct{}, 1)}
}

func (p *pending) add(ev events.Event) {
	p.mu.Lock()
	switch ev := ev.(type) {
	case events.RepoChanged:
		p.roots[ev.Root] = struct{}{}
	case events.FoldersChanged:
		p.folders = true
	}
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pending) take() (roots []string, folders bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for root := range p.roots {
		roots = append(roots, root)
	}
	clear(p.roots)
	folders, p.folders = p.folders, false
	slices.Sort(roots)
	return roots, folders
}

// New creates a Service and loads persisted snapshots. Call Start to begin
// reacting to events and Close to stop.
func New(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = config.DefaultDebounce
	}
	if opts.RefreshThrottle <= 0 {
		opts.RefreshThrottle = config.DefaultRefreshThrottle
	}
	opts.StartupGrace = min(max(opts.StartupGrace, 0), config.MaxStartupGrace)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		deps:   deps,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		scopes: make(map[Scope]*scopeCache, len(Scopes)),
	}
	for _, scope := range Scopes {
		sc := &scopeCache{scope: scope, dirtyRoots: map[string]bool{}}
		sc.throttle = debounce.NewThrottler(opts.RefreshThrottle, func() { s.request(sc, "") })
		s.scopes[scope] = sc
		s.load(sc)
	}
	s.repoDebounce = debounce.NewKeyed(opts.Debounce, s.repoChanged)

	var mains []string
	if _, err := deps.Store.Get(state.Workspace, state.KeyMainFolders, &mains); err != nil {
		deps.Logger.Warn("cached main folders unreadable", "error", err)
	}
	s.mainFolders = mains
	return s
}

// load publishes the persisted snapshot of sc, if any.
func (s *Service) load(sc *scopeCache) {
	var items []Item
	found, err := s.deps.Store.Get(sc.scope.stateScope(), state.KeyWorktreeCache, &items)
	if err != nil {
		s.deps.Logger.Warn("persisted worktree cache unreadable", "scope", string(sc.scope), "error", err)
	}
	snap := &snapshot{entries: map[string][]Item{}, items: items}
	for _, it := range items {
		key := worktree.NormalizePath(it.Root)
		snap.entries[key] = append(snap.entries[key], it)
	}
	sc.snap.Store(snap)

	sc.mu.Lock()
	sc.fromDisk = found && err == nil
	sc.loadedAt = time.Now()
	sc.mu.Unlock()
}

// Start subscribes to repository and folder events and schedules the first
// rebuild, delayed by the startup grace window when a persisted snapshot
// was loaded.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		if s.deps.Bus != nil {
			s.pending = newPending()
			s.unhandle = s.deps.Bus.Handle(s.pending.add, events.KindRepoChanged, events.KindFoldersChanged)
			s.wg.Add(1)
			go s.dispatch(s.pending)
		}
		s.syncWatches()
		for _, sc := range s.scopes {
			sc.mu.Lock()
			delay := time.Duration(0)
			if sc.fromDisk {
				delay = s.opts.StartupGrace - time.Since(sc.loadedAt)
			}
			sc.mu.Unlock()
			if delay <= 0 {
				s.request(sc, "")
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				select {
				case <-time.After(delay):
					s.request(sc, "")
				case <-s.ctx.Done():
				}
			}()
		}
	})
}

func (s *Service) dispatch(p *pending) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-p.wake:
		}
		roots, folders := p.take()
		if folders {
			s.syncWatches()
			for _, scope := range Scopes {
				s.Invalidate(scope, "")
			}
		}
		for _, root := range roots {
			s.repoDebounce.Trigger(root)
		}
	}
}

// repoChanged runs after a debounced burst of changes under root.
func (s *Service) repoChanged(root string) {
	if err := s.deps.Store.Delete(state.Global, state.RefListKey(root)); err != nil {
		s.deps.Logger.Warn("ref list cache not cleared", "root", root, "error", err)
	}
	for _, scope := range Scopes {
		s.Invalidate(scope, root)
	}
}

// Get returns the current snapshot of scope. The slice must not be modified.
func (s *Service) Get(scope Scope) []Item {
	sc, ok := s.scopes[scope]
	if !ok {
		return nil
	}
	return sc.snap.Load().items
}

// Invalidate schedules a rebuild. With root == "" the whole scope is
// rebuilt, throttled; otherwise only root's entry is rebuilt, and only if
// the scope tracks it.
func (s *Service) Invalidate(scope Scope, root string) {
	sc, ok := s.scopes[scope]
	if !ok {
		return
	}
	if root == "" {
		sc.mu.Lock()
		inGrace := sc.fromDisk && time.Since(sc.loadedAt) < s.opts.StartupGrace
		sc.mu.Unlock()
		if inGrace {
			s.deps.Logger.Debug("invalidate skipped during startup grace", "scope", string(scope))
			return
		}
		sc.throttle.Trigger()
		return
	}
	if !s.tracks(scope, root) {
		return
	}
	s.request(sc, root)
}

// Refresh rebuilds scope now and waits for it. A rebuild already in flight
// is not restarted; Refresh waits for the follow-up cycle instead.
func (s *Service) Refresh(ctx context.Context, scope Scope) error {
	sc, ok := s.scopes[scope]
	if !ok {
		return fmt.Errorf("unknown cache scope %q", scope)
	}
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	done := s.request(sc, "")
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// request marks root (or everything) dirty and makes sure a rebuild cycle
// will pick it up. The returned channel closes when that cycle finishes.
func (s *Service) request(sc *scopeCache, root string) <-chan struct{} {
	done := make(chan struct{})
	sc.mu.Lock()
	if s.ctx.Err() != nil {
		sc.mu.Unlock()
		close(done)
		return done
	}
	if root == "" {
		sc.dirtyAll = true
	} else {
		sc.dirtyRoots[worktree.NormalizePath(root)] = true
	}
	sc.waiters = append(sc.waiters, done)
	if sc.running {
		sc.mu.Unlock()
		return done
	}
	sc.running = true
	s.wg.Add(1)
	sc.mu.Unlock()

	go s.drain(sc)
	return done
}

// drain runs rebuild cycles until no requests are pending. Requests arriving
// during a cycle are merged into a single follow-up cycle.
func (s *Service) drain(sc *scopeCache) {
	defer s.wg.Done()
	for {
		sc.mu.Lock()
		if (!sc.dirtyAll && len(sc.dirtyRoots) == 0) || s.ctx.Err() != nil {
			sc.running = false
			waiters := sc.waiters
			sc.waiters = nil
			sc.mu.Unlock()
			closeAll(waiters)
			return
		}
		all, roots := sc.dirtyAll, sc.dirtyRoots
		sc.dirtyAll, sc.dirtyRoots = false, map[string]bool{}
		waiters := sc.waiters
		sc.waiters = nil
		sc.fromDisk = false
		sc.mu.Unlock()

		s.rebuild(sc, all, roots)
		closeAll(waiters)
	}
}

func closeAll(chs []chan struct{}) {
	for _, ch := range chs {
		close(ch)
	}
}

// rebuild lists the dirty roots and reuses the previous entries of the
// others, then publishes the flattened snapshot in tracked order.
func (s *Service) rebuild(sc *scopeCache, all bool, dirty map[string]bool) {
	start := time.Now()
	roots, err := s.trackedRoots(sc.scope)
	if err != nil {
		s.deps.Logger.Error("listing tracked repositories failed", "scope", string(sc.scope), "error", err)
		return
	}

	old := sc.snap.Load()
	next := &snapshot{entries: make(map[string][]Item, len(roots))}
	built := 0
	for _, tr := range roots {
		key := worktree.NormalizePath(tr.root)
		prev, had := old.entries[key]
		if had && !all && !dirty[key] {
			next.entries[key] = relabel(prev, tr.label)
			continue
		}
		list, err := s.deps.Lister.List(s.ctx, tr.root, worktree.ListOptions{SkipRemote: true})
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.deps.Logger.Error("worktree list failed", "root", tr.root, "error", err)
			if had {
				next.entries[key] = relabel(prev, tr.label)
			}
			continue
		}
		built++
		items := make([]Item, len(list))
		for i, d := range list {
			items[i] = Item{Descriptor: d, Label: tr.label}
		}
		next.entries[key] = items
	}
	for _, tr := range roots {
		next.items = append(next.items, next.entries[worktree.NormalizePath(tr.root)]...)
	}
	if s.ctx.Err() != nil {
		return
	}

	sc.snap.Store(next)
	if err := s.deps.Store.Set(sc.scope.stateScope(), state.KeyWorktreeCache, next.items); err != nil {
		s.deps.Logger.Warn("persisting worktree cache failed", "scope", string(sc.scope), "error", err)
	}
	s.deps.Logger.Debug("cache rebuilt", "scope", string(sc.scope), "repos", len(roots), "listed", built,
		"items", len(next.items), "duration", time.Since(start).String())
	s.deps.Bus.Publish(events.CacheUpdated{Scope: string(sc.scope), Count: len(next.items)})
}

func relabel(items []Item, label string) []Item {
	if len(items) == 0 || items[0].Label == label {
		return items
	}
	out := slices.Clone(items)
	for i := range out {
		out[i].Label = label
	}
	return out
}

// trackedRoots returns the repositories of scope in display order: Global
// follows registration order, Workspace follows the workspace folder order.
func (s *Service) trackedRoots(scope Scope) ([]tracked, error) {
	registered, err := s.deps.Folders.List()
	if err != nil {
		return nil, err
	}
	if scope == Global {
		out := make([]tracked, len(registered))
		for i, f := range registered {
			out[i] = tracked{root: f.Path, label: f.Name}
		}
		return out, nil
	}

	s.wsMu.Lock()
	mains := slices.Clone(s.mainFolders)
	s.wsMu.Unlock()
	out := make([]tracked, 0, len(mains))
	for _, m := range mains {
		label := filepath.Base(m)
		for _, f := range registered {
			if worktree.ComparePath(f.Path, m) {
				label = f.Name
				break
			}
		}
		out = append(out, tracked{root: m, label: label})
	}
	return out, nil
}

func (s *Service) tracks(scope Scope, root string) bool {
	roots, err := s.trackedRoots(scope)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(roots, func(tr tracked) bool { return worktree.ComparePath(tr.root, root) })
}

// SetWorkspaceFolders re-resolves the main folders of the open workspace,
// rebinds the Workspace state scope and rebuilds the Workspace snapshot.
func (s *Service) SetWorkspaceFolders(ctx context.Context, folders []string) error {
	mains := make([]string, 0, len(folders))
	for _, f := range folders {
		m := s.deps.Resolver.MainFolder(ctx, f)
		if m == "" {
			continue
		}
		if !slices.ContainsFunc(mains, func(x string) bool { return worktree.ComparePath(x, m) }) {
			mains = append(mains, m)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.deps.Store.BindWorkspace(folders)
	if err := s.deps.Store.Set(state.Workspace, state.KeyWorkspaceFolders, folders); err != nil {
		return err
	}
	if err := s.deps.Store.Set(state.Workspace, state.KeyMainFolders, mains); err != nil {
		return err
	}
	s.wsMu.Lock()
	s.mainFolders = mains
	s.wsMu.Unlock()

	sc := s.scopes[Workspace]
	s.load(sc)
	sc.mu.Lock()
	sc.fromDisk = false
	sc.mu.Unlock()
	s.syncWatches()
	s.request(sc, "")
	return nil
}

// MainFolders returns the resolved main folders of the workspace.
func (s *Service) MainFolders() []string {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return slices.Clone(s.mainFolders)
}

// RefList returns the cached ref list of mainFolder.
func (s *Service) RefList(mainFolder string) ([]git.RefRecord, bool) {
	var refs []git.RefRecord
	found, err := s.deps.Store.Get(state.Global, state.RefListKey(mainFolder), &refs)
	if err != nil || !found || len(refs) == 0 {
		return nil, false
	}
	return refs, true
}

// StoreRefList caches refs for mainFolder with the HEAD marker removed.
func (s *Service) StoreRefList(mainFolder string, refs []git.RefRecord) error {
	return s.deps.Store.Set(state.Global, state.RefListKey(mainFolder), git.WithoutHeadMarker(refs))
}

func (s *Service) syncWatches() {
	if s.deps.Watcher == nil {
		return
	}
	var roots []string
	for _, scope := range Scopes {
		trs, err := s.trackedRoots(scope)
		if err != nil {
			continue
		}
		for _, tr := range trs {
			if !slices.ContainsFunc(roots, func(r string) bool { return worktree.ComparePath(r, tr.root) }) {
				roots = append(roots, tr.root)
			}
		}
	}
	s.deps.Watcher.Sync(roots)
}

// Close stops timers and waits for in-flight rebuilds to observe
// cancellation.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		// Requests check the context under sc.mu; after this barrier none
		// can add to the wait group.
		for _, sc := range s.scopes {
			sc.mu.Lock()
			sc.mu.Unlock()
		}
		s.repoDebounce.Stop()
		for _, sc := range s.scopes {
			sc.throttle.Stop()
		}
		if s.unhandle != nil {
			s.unhandle()
		}
		s.wg.Wait()
	})
}

var _ Watcher = (*watch.Registry)(nil)
