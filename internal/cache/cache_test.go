package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wtsync/internal/events"
	"wtsync/internal/folders"
	"wtsync/internal/git"
	"wtsync/internal/logging"
	"wtsync/internal/state"
	"wtsync/internal/worktree"
)

type fakeLister struct {
	mu     sync.Mutex
	calls  map[string]int
	cycle  atomic.Int64
	fail   map[string]bool
	block  chan struct{} // when set, List waits on it
	listed chan string   // optional notification per call
}

func newFakeLister() *fakeLister {
	return &fakeLister{calls: map[string]int{}, fail: map[string]bool{}}
}

func (f *fakeLister) List(ctx context.Context, root string, opts worktree.ListOptions) ([]worktree.Descriptor, error) {
	f.mu.Lock()
	f.calls[root]++
	block, listed, fail := f.block, f.listed, f.fail[root]
	f.mu.Unlock()
	if !opts.SkipRemote {
		return nil, errors.New("cache must list with SkipRemote")
	}
	if listed != nil {
		listed <- root
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("boom")
	}
	hash := strconv.FormatInt(f.cycle.Load(), 10)
	return []worktree.Descriptor{
		{Path: root, Root: root, Hash: hash, IsMain: true, IsBranch: true, Name: "main"},
		{Path: root + "/wt", Root: root, Hash: hash, IsBranch: true, Name: "wt"},
	}, nil
}

func (f *fakeLister) count(root string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[root]
}

type fakeFolders struct {
	mu   sync.Mutex
	list []folders.GitFolder
}

func (f *fakeFolders) List() ([]folders.GitFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]folders.GitFolder(nil), f.list...), nil
}

type fakeResolver map[string]string

func (r fakeResolver) MainFolder(_ context.Context, dir string) string { return r[dir] }

type fakeWatcher struct {
	mu    sync.Mutex
	roots []string
}

func (w *fakeWatcher) Sync(roots []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.roots = roots
}

type harness struct {
	svc     *Service
	lister  *fakeLister
	folders *fakeFolders
	store   *state.Store
	bus     *events.Bus
	watcher *fakeWatcher
}

func newHarness(t *testing.T, opts Options, dir string) *harness {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	bus := events.NewBus()
	store, err := state.Open(dir, nil, bus, logging.NopLogger())
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		lister:  newFakeLister(),
		folders: &fakeFolders{list: []folders.GitFolder{{Name: "alpha", Path: "/a"}, {Name: "beta", Path: "/b"}}},
		store:   store,
		bus:     bus,
		watcher: &fakeWatcher{},
	}
	h.svc = New(Deps{
		Store:    store,
		Lister:   h.lister,
		Folders:  h.folders,
		Resolver: fakeResolver{"/a/wt": "/a", "/b": "/b", "/x": ""},
		Watcher:  h.watcher,
		Bus:      bus,
		Logger:   logging.NopLogger(),
	}, opts)
	t.Cleanup(func() {
		h.svc.Close()
		bus.Close()
	})
	return h
}

var fastOpts = Options{Debounce: 10 * time.Millisecond, RefreshThrottle: 10 * time.Millisecond}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestService_RefreshGlobalOrderAndLabels(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	sub := h.bus.Subscribe(8, events.KindCacheUpdated)

	if err := h.svc.Refresh(context.Background(), Global); err != nil {
		t.Fatal(err)
	}
	items := h.svc.Get(Global)
	if len(items) != 4 {
		t.Fatalf("Get() = %d items, want 4", len(items))
	}
	wantPaths := []string{"/a", "/a/wt", "/b", "/b/wt"}
	wantLabels := []string{"alpha", "alpha", "beta", "beta"}
	for i, it := range items {
		if it.Path != wantPaths[i] || it.Label != wantLabels[i] {
			t.Errorf("items[%d] = %s/%s, want %s/%s", i, it.Label, it.Path, wantLabels[i], wantPaths[i])
		}
	}

	ev := (<-sub.C()).(events.CacheUpdated)
	if ev.Scope != string(Global) || ev.Count != 4 {
		t.Errorf("event = %+v", ev)
	}

	var persisted []Item
	if found, err := h.store.Get(state.Global, state.KeyWorktreeCache, &persisted); !found || err != nil || len(persisted) != 4 {
		t.Errorf("persisted = %d items (found=%v err=%v)", len(persisted), found, err)
	}
}

func TestService_RepoInvalidationIsIsolated(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	if err := h.svc.Refresh(context.Background(), Global); err != nil {
		t.Fatal(err)
	}
	h.lister.cycle.Store(1)

	h.svc.Invalidate(Global, "/b")
	waitUntil(t, func() bool { return h.lister.count("/b") == 2 })
	waitUntil(t, func() bool {
		items := h.svc.Get(Global)
		return len(items) == 4 && items[2].Hash == "1"
	})

	if got := h.lister.count("/a"); got != 1 {
		t.Errorf("/a listed %d times, want 1", got)
	}
	items := h.svc.Get(Global)
	if items[0].Hash != "0" {
		t.Errorf("/a entry should be reused, hash = %q", items[0].Hash)
	}

	h.svc.Invalidate(Global, "/untracked")
	time.Sleep(30 * time.Millisecond)
	if got := h.lister.count("/untracked"); got != 0 {
		t.Errorf("untracked root listed %d times", got)
	}
}

func TestService_CoalescesConcurrentRequests(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	h.folders.list = h.folders.list[:1]
	h.lister.block = make(chan struct{})
	h.lister.listed = make(chan string, 16)

	h.svc.Invalidate(Global, "/a")
	<-h.lister.listed
	for range 5 {
		h.svc.Invalidate(Global, "/a")
	}
	close(h.lister.block)

	waitUntil(t, func() bool { return h.lister.count("/a") == 2 })
	time.Sleep(50 * time.Millisecond)
	if got := h.lister.count("/a"); got != 2 {
		t.Errorf("List calls = %d, want 2 (one in flight + one coalesced follow-up)", got)
	}
}

func TestService_SnapshotAtomicity(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	if err := h.svc.Refresh(context.Background(), Global); err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	var mixed atomic.Bool
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				items := h.svc.Get(Global)
				for _, it := range items {
					if it.Hash != items[0].Hash {
						mixed.Store(true)
					}
				}
			}
		}()
	}

	for i := 1; i <= 20; i++ {
		h.lister.cycle.Store(int64(i))
		if err := h.svc.Refresh(context.Background(), Global); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()

	if mixed.Load() {
		t.Error("a reader observed items from two different rebuilds")
	}
}

func TestService_FailedListKeepsPreviousEntry(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	if err := h.svc.Refresh(context.Background(), Global); err != nil {
		t.Fatal(err)
	}
	h.lister.mu.Lock()
	h.lister.fail["/a"] = true
	h.lister.mu.Unlock()
	h.lister.cycle.Store(7)

	if err := h.svc.Refresh(context.Background(), Global); err != nil {
		t.Fatal(err)
	}
	items := h.svc.Get(Global)
	if len(items) != 4 || items[0].Hash != "0" || items[2].Hash != "7" {
		t.Errorf("items = %+v", items)
	}
}

func TestService_StartupGrace(t *testing.T) {
	dir := t.TempDir()
	seed, err := state.Open(dir, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	persisted := []Item{{Descriptor: worktree.Descriptor{Path: "/a", Root: "/a", Hash: "old"}, Label: "alpha"}}
	if err := seed.Set(state.Global, state.KeyWorktreeCache, persisted); err != nil {
		t.Fatal(err)
	}

	opts := fastOpts
	opts.StartupGrace = 300 * time.Millisecond
	h := newHarness(t, opts, dir)

	if items := h.svc.Get(Global); len(items) != 1 || items[0].Hash != "old" {
		t.Fatalf("persisted snapshot not loaded: %+v", items)
	}
	h.svc.Invalidate(Global, "")
	time.Sleep(50 * time.Millisecond)
	if got := h.lister.count("/a"); got != 0 {
		t.Errorf("invalidate inside grace listed %d times", got)
	}

	h.svc.Start()
	waitUntil(t, func() bool { return len(h.svc.Get(Global)) == 4 })
}

func TestService_EventDrivenRebuild(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	h.svc.Start()
	waitUntil(t, func() bool { return len(h.svc.Get(Global)) == 4 })

	_ = h.svc.StoreRefList("/a", []git.RefRecord{{git.FieldRefName: "refs/heads/main"}})
	h.lister.cycle.Store(3)
	for range 5 {
		h.bus.Publish(events.RepoChanged{Root: "/a", Path: "/a/.git/index"})
	}
	waitUntil(t, func() bool {
		items := h.svc.Get(Global)
		return len(items) == 4 && items[0].Hash == "3"
	})
	if _, ok := h.svc.RefList("/a"); ok {
		t.Error("repo change should drop the cached ref list")
	}

	h.watcher.mu.Lock()
	roots := h.watcher.roots
	h.watcher.mu.Unlock()
	if len(roots) != 2 {
		t.Errorf("watched roots = %v", roots)
	}
}

func TestService_FolderChangeSurvivesRepoBurst(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	h.svc.Start()
	waitUntil(t, func() bool { return len(h.svc.Get(Global)) == 4 })

	h.folders.mu.Lock()
	h.folders.list = append(h.folders.list, folders.GitFolder{Name: "gamma", Path: "/c"})
	h.folders.mu.Unlock()
	h.bus.Publish(events.FoldersChanged{Added: "/c"})
	for i := range 1000 {
		h.bus.Publish(events.RepoChanged{Root: "/b", Path: "/b/.git/refs/remotes/origin/r" + strconv.Itoa(i)})
	}

	waitUntil(t, func() bool { return len(h.svc.Get(Global)) == 6 })
	waitUntil(t, func() bool {
		h.watcher.mu.Lock()
		defer h.watcher.mu.Unlock()
		return len(h.watcher.roots) == 3
	})
}

func TestPending_Coalesces(t *testing.T) {
	p := newPending()
	p.add(events.RepoChanged{Root: "/b"})
	p.add(events.FoldersChanged{Removed: "/x"})
	p.add(events.RepoChanged{Root: "/a"})
	p.add(events.RepoChanged{Root: "/b"})

	if len(p.wake) != 1 {
		t.Errorf("wake signals = %d, want 1", len(p.wake))
	}
	roots, folders := p.take()
	if !folders || len(roots) != 2 || roots[0] != "/a" || roots[1] != "/b" {
		t.Errorf("take() = %v, %v", roots, folders)
	}
	if roots, folders := p.take(); roots != nil || folders {
		t.Errorf("second take() = %v, %v; want nothing pending", roots, folders)
	}
}

func TestService_SetWorkspaceFolders(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	if err := h.svc.SetWorkspaceFolders(context.Background(), []string{"/a/wt", "/x"}); err != nil {
		t.Fatal(err)
	}
	if got := h.svc.MainFolders(); len(got) != 1 || got[0] != "/a" {
		t.Errorf("MainFolders() = %v", got)
	}
	if err := h.svc.Refresh(context.Background(), Workspace); err != nil {
		t.Fatal(err)
	}
	items := h.svc.Get(Workspace)
	if len(items) != 2 || items[0].Label != "alpha" {
		t.Errorf("workspace items = %+v", items)
	}
	if got := h.lister.count("/b"); got != 0 {
		t.Errorf("workspace scope listed an unrelated repo %d times", got)
	}
}

func TestService_RefListStripsHeadMarker(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	if _, ok := h.svc.RefList("/a"); ok {
		t.Error("empty cache should report a miss")
	}
	refs := []git.RefRecord{
		{git.FieldRefName: "refs/heads/main", git.FieldHead: "*"},
		{git.FieldRefName: "refs/heads/dev", git.FieldHead: " "},
	}
	if err := h.svc.StoreRefList("/A/", refs); err != nil {
		t.Fatal(err)
	}
	got, ok := h.svc.RefList("/a")
	if !ok || len(got) != 2 {
		t.Fatalf("RefList() = %v, %v", got, ok)
	}
	if got[0].IsCurrent() {
		t.Error("cached refs must not carry the HEAD marker")
	}
	if refs[0][git.FieldHead] != "*" {
		t.Error("StoreRefList modified its input")
	}
}

func TestParseScope(t *testing.T) {
	for in, want := range map[string]Scope{"": Global, "global": Global, "workspace": Workspace} {
		if got, err := ParseScope(in); err != nil || got != want {
			t.Errorf("ParseScope(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseScope("nope"); err == nil {
		t.Error("ParseScope(nope) should fail")
	}
}

func TestService_RefreshAfterClose(t *testing.T) {
	h := newHarness(t, fastOpts, "")
	h.svc.Close()
	if err := h.svc.Refresh(context.Background(), Global); !errors.Is(err, ErrClosed) {
		t.Errorf("Refresh() after Close = %v, want ErrClosed", err)
	}
}
