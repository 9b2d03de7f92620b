// pattern: Imperative Shell

package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"wtsync/internal/worktree"
)

// RemoveOptions controls RemoveWorktree.
type RemoveOptions struct {
	Path  string
	Force bool
	Yes   bool
}

// RemoveWorktree removes a linked worktree. A refusal because of local
// changes is turned into a force prompt.
func (o *Orchestrator) RemoveWorktree(ctx context.Context, opts RemoveOptions) error {
	const action = "Remove worktree"
	return o.finish(action, o.removeWorktree(ctx, opts))
}

func (o *Orchestrator) removeWorktree(ctx context.Context, opts RemoveOptions) error {
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return err
	}
	main, err := o.mainFolder(ctx, path)
	if err != nil {
		return err
	}
	if worktree.ComparePath(path, main) {
		return invalid("path", "the main worktree cannot be removed")
	}

	if !opts.Yes {
		if o.prompt == nil {
			return invalid("confirm", "removing %s needs confirmation", path)
		}
		ok, err := o.prompt.Confirm(ctx, "Remove worktree", "Remove the worktree at "+path+"?", nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCancelled
		}
	}

	err = o.repo.RemoveWorktree(ctx, main, path, opts.Force)
	if err != nil && !opts.Force && needsForce(err) && o.prompt != nil {
		ok, perr := o.prompt.Confirm(ctx, "Remove worktree",
			fmt.Sprintf("%s\nForce removal? Uncommitted changes will be lost.", Truncate(err.Error(), o.maxErrorLength())), nil)
		if perr != nil {
			return perr
		}
		if !ok {
			return ErrCancelled
		}
		err = o.repo.RemoveWorktree(ctx, main, path, true)
	}
	if err != nil {
		return err
	}
	o.logger.Info("worktree removed", "path", path)
	o.changed("remove", main, path)
	return nil
}

func needsForce(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "--force") || strings.Contains(msg, "modified or untracked") ||
		strings.Contains(msg, "is locked")
}

// MoveWorktree moves a linked worktree to a new directory.
func (o *Orchestrator) MoveWorktree(ctx context.Context, from, to string) error {
	const action = "Move worktree"
	return o.finish(action, o.moveWorktree(ctx, from, to))
}

func (o *Orchestrator) moveWorktree(ctx context.Context, from, to string) error {
	from, err := filepath.Abs(from)
	if err != nil {
		return err
	}
	main, err := o.mainFolder(ctx, from)
	if err != nil {
		return err
	}
	if worktree.ComparePath(from, main) {
		return invalid("path", "the main worktree cannot be moved")
	}
	if to == "" {
		if o.prompt == nil {
			return invalid("to", "no destination given")
		}
		to, err = o.prompt.Input(ctx, InputRequest{
			Title:    "Move worktree",
			Prompt:   "New location for " + from,
			Value:    from,
			Validate: ValidateTargetDir,
		})
		if err != nil {
			return err
		}
	}
	if msg := ValidateTargetDir(to); msg != "" {
		return invalid("to", "%s", msg)
	}
	to, err = filepath.Abs(to)
	if err != nil {
		return err
	}
	if err := o.repo.MoveWorktree(ctx, main, from, to); err != nil {
		return err
	}
	o.logger.Info("worktree moved", "from", from, "to", to)
	o.changed("move", main, to)
	return nil
}

// LockWorktree locks path with an optional reason.
func (o *Orchestrator) LockWorktree(ctx context.Context, path, reason string) error {
	return o.finish("Lock worktree", o.simple(ctx, "lock", path, func(main, abs string) error {
		return o.repo.LockWorktree(ctx, main, abs, reason)
	}))
}

// UnlockWorktree unlocks path.
func (o *Orchestrator) UnlockWorktree(ctx context.Context, path string) error {
	return o.finish("Unlock worktree", o.simple(ctx, "unlock", path, func(main, abs string) error {
		return o.repo.UnlockWorktree(ctx, main, abs)
	}))
}

// RepairWorktrees repairs administrative links of the repository containing
// dir and of any extra paths given.
func (o *Orchestrator) RepairWorktrees(ctx context.Context, dir string, paths ...string) error {
	return o.finish("Repair worktrees", o.simple(ctx, "repair", dir, func(main, _ string) error {
		return o.repo.RepairWorktree(ctx, main, paths...)
	}))
}

func (o *Orchestrator) simple(ctx context.Context, verb, path string, fn func(main, abs string) error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	main, err := o.mainFolder(ctx, abs)
	if err != nil {
		return err
	}
	if err := fn(main, abs); err != nil {
		return err
	}
	o.logger.Info("worktree "+verb, "path", abs)
	o.changed(verb, main, abs)
	return nil
}
