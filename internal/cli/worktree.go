// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"

	"wtsync/internal/workflow"
)

func currentDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func registerCheckoutCommand(b *builder) {
	b.app.AddCommand(&Command{
		Name:    "checkout",
		Summary: "Switch a worktree to a branch, tag or commit",
		Usage:   "Usage: wtsync checkout [ref] [--dir <worktree>] [--detach]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("checkout")
			dir := fs.StringP("dir", "C", currentDir(), "worktree to switch")
			detach := fs.Bool("detach", false, "detach HEAD at the ref")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() > 1 {
				return usagef("expected at most one ref")
			}
			return b.withEnv([]string{*dir}, func(env *Env) error {
				plan, err := env.Orchestrator().Checkout(ctx, workflow.CheckoutOptions{
					Dir:    *dir,
					Ref:    fs.Arg(0),
					Detach: *detach,
				})
				if err != nil {
					return err
				}
				target := plan.Branch
				if target == "" {
					target = plan.Ref
				}
				_, err = fmt.Fprintf(env.Stdout, "Switched to %s\n", target)
				return err
			})
		},
	})
}

func registerWorktreeCommands(b *builder, g *Group) {
	g.AddCommand(&Command{
		Name:    "create",
		Summary: "Create a worktree for an existing ref or a new branch",
		Usage:   "Usage: wtsync worktree create [ref] [--branch <name>] [--base <ref>] [--path <dir>] [--dir <repo>] [--yes] [--no-open] [--no-copy] [--no-hook]",
		Run:     b.runCreate,
	})

	g.AddCommand(&Command{
		Name:    "remove",
		Summary: "Remove a linked worktree",
		Usage:   "Usage: wtsync worktree remove <path> [--force] [--yes]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("remove")
			force := fs.BoolP("force", "f", false, "remove even with local changes")
			yes := fs.BoolP("yes", "y", false, "do not ask for confirmation")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return usagef("expected a worktree path")
			}
			path := fs.Arg(0)
			return b.withEnv([]string{path}, func(env *Env) error {
				err := env.Orchestrator().RemoveWorktree(ctx, workflow.RemoveOptions{Path: path, Force: *force, Yes: *yes})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(env.Stdout, "Removed %s\n", path)
				return err
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "move",
		Summary: "Move a linked worktree to a new directory",
		Usage:   "Usage: wtsync worktree move <from> [to]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("move")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() < 1 || fs.NArg() > 2 {
				return usagef("expected a worktree path and an optional destination")
			}
			from, to := fs.Arg(0), fs.Arg(1)
			return b.withEnv([]string{from}, func(env *Env) error {
				return env.Orchestrator().MoveWorktree(ctx, from, to)
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "lock",
		Summary: "Protect a worktree from pruning",
		Usage:   "Usage: wtsync worktree lock <path> [--reason <text>]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("lock")
			reason := fs.String("reason", "", "why the worktree is locked")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return usagef("expected a worktree path")
			}
			return b.withEnv([]string{fs.Arg(0)}, func(env *Env) error {
				return env.Orchestrator().LockWorktree(ctx, fs.Arg(0), *reason)
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "unlock",
		Summary: "Remove the lock from a worktree",
		Usage:   "Usage: wtsync worktree unlock <path>",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("unlock")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return usagef("expected a worktree path")
			}
			return b.withEnv([]string{fs.Arg(0)}, func(env *Env) error {
				return env.Orchestrator().UnlockWorktree(ctx, fs.Arg(0))
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "repair",
		Summary: "Repair worktree administrative files",
		Usage:   "Usage: wtsync worktree repair [paths...] [--dir <repo>]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("repair")
			dir := fs.StringP("dir", "C", currentDir(), "repository to repair")
			if err := parse(fs, args); err != nil {
				return err
			}
			return b.withEnv([]string{*dir}, func(env *Env) error {
				return env.Orchestrator().RepairWorktrees(ctx, *dir, fs.Args()...)
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "prune",
		Summary: "Remove administrative data of deleted worktrees",
		Usage:   "Usage: wtsync worktree prune [--dir <repo>] [--yes]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("prune")
			dir := fs.StringP("dir", "C", currentDir(), "repository to prune")
			yes := fs.BoolP("yes", "y", false, "do not ask for confirmation")
			if err := parse(fs, args); err != nil {
				return err
			}
			return b.withEnv([]string{*dir}, func(env *Env) error {
				res, err := env.Orchestrator().PruneWorktrees(ctx, workflow.PruneOptions{Dir: *dir, Yes: *yes})
				if err != nil {
					return err
				}
				if len(res.Candidates) == 0 {
					_, err = fmt.Fprintln(env.Stdout, "Nothing to prune")
					return err
				}
				for _, p := range res.Removed {
					fmt.Fprintf(env.Stdout, "Pruned %s\n", p)
				}
				return nil
			})
		},
	})
}

func (b *builder) runCreate(ctx context.Context, args []string) error {
	fs := newFlags("create")
	branch := fs.StringP("branch", "b", "", "create this new branch")
	base := fs.String("base", "", "start point of the new branch")
	path := fs.StringP("path", "p", "", "target directory")
	dir := fs.StringP("dir", "C", currentDir(), "any path inside the repository")
	yes := fs.BoolP("yes", "y", false, "do not ask for confirmation")
	noOpen := fs.Bool("no-open", false, "do not open the new worktree")
	noCopy := fs.Bool("no-copy", false, "skip copying ignored files")
	noHook := fs.Bool("no-hook", false, "skip the post-create hook")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return usagef("expected at most one ref")
	}
	if *base != "" && *branch == "" {
		return usagef("--base requires --branch")
	}

	opts := workflow.CreateOptions{
		Dir:       *dir,
		Ref:       fs.Arg(0),
		NewBranch: *branch,
		Base:      *base,
		Path:      *path,
		Yes:       *yes,
		NoCopy:    *noCopy,
		NoHook:    *noHook,
	}
	if *noOpen {
		open := false
		opts.Open = &open
	}

	return b.withEnv([]string{*dir}, func(env *Env) error {
		if !env.Interactive() && opts.Open == nil {
			open := false
			opts.Open = &open
		}
		res, err := env.Orchestrator().CreateWorktree(ctx, opts)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(env.Stderr, "warning: %v\n", w)
		}
		if len(res.Copied) > 0 {
			fmt.Fprintf(env.Stderr, "Copied %d file(s)\n", len(res.Copied))
		}
		if !res.Opened {
			_, err = fmt.Fprintln(env.Stdout, res.Path)
		}
		return err
	})
}
