package folders

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"wtsync/internal/events"
	"wtsync/internal/logging"
	"wtsync/internal/state"
)

// fakeResolver treats every directory in repos as a repository root.
type fakeResolver struct {
	repos map[string]string
}

func (f fakeResolver) MainFolder(_ context.Context, dir string) string {
	return f.repos[dir]
}

func newTestRegistry(t *testing.T, repos map[string]string, bus *events.Bus) *Registry {
	t.Helper()
	store, err := state.Open(t.TempDir(), nil, bus, logging.NopLogger())
	if err != nil {
		t.Fatal(err)
	}
	return NewRegistry(store, fakeResolver{repos: repos}, bus, logging.NopLogger())
}

func TestRegistry_AddNonRepositoryLeavesListUnchanged(t *testing.T) {
	repoDir := t.TempDir()
	plain := t.TempDir()
	r := newTestRegistry(t, map[string]string{repoDir: repoDir}, nil)

	if _, err := r.Add(context.Background(), repoDir, ""); err != nil {
		t.Fatalf("Add(repo) error = %v", err)
	}
	before, _ := r.List()

	_, err := r.Add(context.Background(), plain, "")
	if !errors.Is(err, ErrNotRepository) {
		t.Errorf("Add(non-repo) error = %v, want ErrNotRepository", err)
	}
	_, err = r.Add(context.Background(), filepath.Join(plain, "missing"), "")
	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Add(missing) error = %v, want ErrNotDirectory", err)
	}

	after, _ := r.List()
	if len(before) != len(after) {
		t.Errorf("list length changed from %d to %d", len(before), len(after))
	}
}

func TestRegistry_AddStoresMainFolder(t *testing.T) {
	main := t.TempDir()
	linked := t.TempDir()
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(4, events.KindFoldersChanged)
	r := newTestRegistry(t, map[string]string{linked: main, main: main}, bus)

	f, err := r.Add(context.Background(), linked, "alias")
	if err != nil {
		t.Fatal(err)
	}
	if f.Path != main || f.Name != "alias" {
		t.Errorf("Add() = %+v", f)
	}
	if ev := (<-sub.C()).(events.FoldersChanged); ev.Added != main {
		t.Errorf("event = %+v", ev)
	}

	if _, err := r.Add(context.Background(), main, ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate Add() error = %v", err)
	}
}

func TestRegistry_RenameToggleRemove(t *testing.T) {
	repo := t.TempDir()
	r := newTestRegistry(t, map[string]string{repo: repo}, nil)
	if _, err := r.Add(context.Background(), repo, ""); err != nil {
		t.Fatal(err)
	}

	if err := r.Rename(repo, "renamed"); err != nil {
		t.Fatal(err)
	}
	open, err := r.ToggleOpen(repo)
	if err != nil || !open {
		t.Errorf("ToggleOpen() = %v, %v", open, err)
	}
	f, ok := r.Find(repo)
	if !ok || f.Name != "renamed" || !f.DefaultOpen {
		t.Errorf("Find() = %+v, %v", f, ok)
	}

	if err := r.Rename("/nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename(unknown) error = %v", err)
	}
	if err := r.Remove(repo); err != nil {
		t.Fatal(err)
	}
	if err := r.Remove(repo); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v", err)
	}
	if list, _ := r.List(); len(list) != 0 {
		t.Errorf("List() = %v", list)
	}
}

func TestRegistry_Favorites(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	_ = r.AddFavorite(Item{Path: "/a/proj"})
	_ = r.AddFavorite(Item{Path: "/A/proj/", Label: "dup"})

	favs, err := r.Favorites()
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 1 || favs[0].Label != "proj" || favs[0].Type != TypeFolder {
		t.Errorf("Favorites() = %+v", favs)
	}
	if err := r.RemoveFavorite("/a/proj"); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveFavorite("/a/proj"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveFavorite(missing) error = %v", err)
	}
}

func TestRegistry_RecentsNewestFirstAndCapped(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	for i := range MaxRecents + 5 {
		_ = r.RecordRecent(Item{Path: filepath.Join("/p", string(rune('a'+i)))})
	}
	_ = r.RecordRecent(Item{Path: filepath.Join("/p", "z")})

	recents, err := r.Recents()
	if err != nil {
		t.Fatal(err)
	}
	if len(recents) != MaxRecents {
		t.Errorf("len = %d, want %d", len(recents), MaxRecents)
	}
	if recents[0].Path != filepath.Join("/p", "z") {
		t.Errorf("newest = %q", recents[0].Path)
	}
}
