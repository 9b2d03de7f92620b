// pattern: Imperative Shell

package workflow

import (
	"context"
	"errors"
	"fmt"

	"wtsync/internal/cache"
	"wtsync/internal/folders"
)

// AddFolder registers the repository containing path. Registry refusals are
// reported as validation errors; the stored list is unchanged on failure.
func (o *Orchestrator) AddFolder(ctx context.Context, path, name string) (folders.GitFolder, error) {
	f, err := o.folders.Add(ctx, path, name)
	return f, o.finish("Add git folder", folderErr(err))
}

// RemoveFolder unregisters path.
func (o *Orchestrator) RemoveFolder(path string) error {
	return o.finish("Remove git folder", folderErr(o.folders.Remove(path)))
}

// RenameFolder changes the alias of path, asking for it when empty.
func (o *Orchestrator) RenameFolder(ctx context.Context, path, name string) error {
	if name == "" && o.prompt != nil {
		current, _ := o.folders.Find(path)
		var err error
		name, err = o.prompt.Input(ctx, InputRequest{
			Title: "Rename git folder",
			Value: current.Name,
			Validate: func(s string) string {
				if s == "" {
					return "name cannot be empty"
				}
				return ""
			},
		})
		if err != nil {
			return o.finish("Rename git folder", err)
		}
	}
	return o.finish("Rename git folder", folderErr(o.folders.Rename(path, name)))
}

// ToggleFolderOpen flips the default-open flag of path.
func (o *Orchestrator) ToggleFolderOpen(path string) (bool, error) {
	open, err := o.folders.ToggleOpen(path)
	return open, o.finish("Toggle git folder", folderErr(err))
}

// AddFavorite stores item as a favorite.
func (o *Orchestrator) AddFavorite(item folders.Item) error {
	return o.finish("Add favorite", o.folders.AddFavorite(item))
}

// RemoveFavorite drops the favorite at path.
func (o *Orchestrator) RemoveFavorite(path string) error {
	return o.finish("Remove favorite", folderErr(o.folders.RemoveFavorite(path)))
}

// Open opens path through the Opener and records it as recent.
func (o *Orchestrator) Open(ctx context.Context, path string, newWindow bool) error {
	if o.folders != nil {
		if err := o.folders.RecordRecent(folders.Item{Path: path, Type: folders.TypeFolder}); err != nil {
			o.logger.Warn("recent item not recorded", "path", path, "error", err)
		}
	}
	if o.opener == nil {
		return nil
	}
	return o.finish("Open", o.opener.Open(ctx, path, newWindow))
}

func folderErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, folders.ErrNotDirectory), errors.Is(err, folders.ErrNotRepository),
		errors.Is(err, folders.ErrDuplicate), errors.Is(err, folders.ErrNotFound):
		return &ValidationError{Field: "folder", Msg: err.Error()}
	}
	return err
}

// WorktreeOptions renders cached items for a picker: label and name, with
// branch state and path as detail.
func WorktreeOptions(items []cache.Item) []Option {
	opts := make([]Option, 0, len(items))
	for _, it := range items {
		icon := "git-branch"
		switch {
		case it.IsMain:
			icon = "repo"
		case it.Detached:
			icon = "git-commit"
		case it.Locked:
			icon = "lock"
		}
		desc := it.Label
		if it.HasUpstream() {
			desc += " ⇄ " + it.Upstream()
		}
		if it.Ahead != nil && it.Behind != nil {
			desc += fmt.Sprintf(" ↑%d ↓%d", *it.Ahead, *it.Behind)
		}
		if it.Prunable {
			desc += " (prunable)"
		}
		opts = append(opts, Option{Label: it.Name, Description: desc, Detail: it.Path, Icon: icon, Value: it.Path})
	}
	return opts
}

// PickWorktree asks for one of items and returns it.
func (o *Orchestrator) PickWorktree(ctx context.Context, title string, items []cache.Item) (cache.Item, error) {
	if len(items) == 0 {
		return cache.Item{}, o.finish("Pick worktree", invalid("worktree", "no worktrees found"))
	}
	if o.prompt == nil {
		return cache.Item{}, o.finish("Pick worktree", invalid("worktree", "no worktree given"))
	}
	choice, err := o.prompt.Pick(ctx, PickRequest{Title: title, Placeholder: "worktree", Options: WorktreeOptions(items)})
	if err != nil {
		return cache.Item{}, o.finish("Pick worktree", err)
	}
	for _, it := range items {
		if it.Path == choice.Value {
			return it, nil
		}
	}
	return cache.Item{}, o.finish("Pick worktree", invalid("worktree", "unknown worktree %s", choice.Value))
}
