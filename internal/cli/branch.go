// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"

	"wtsync/internal/workflow"
)

func registerBranchCommands(b *builder, g *Group) {
	g.AddCommand(&Command{
		Name:    "rename",
		Summary: "Rename a branch",
		Usage:   "Usage: wtsync branch rename [old] [new] [--dir <repo>]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("rename")
			dir := fs.StringP("dir", "C", currentDir(), "any path inside the repository")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() > 2 {
				return usagef("expected at most an old and a new name")
			}
			return b.withEnv([]string{*dir}, func(env *Env) error {
				return env.Orchestrator().RenameBranch(ctx, *dir, fs.Arg(0), fs.Arg(1))
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "delete",
		Summary: "Delete a branch; unmerged branches are backed up first",
		Usage:   "Usage: wtsync branch delete [name] [--force] [--dir <repo>]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("delete")
			dir := fs.StringP("dir", "C", currentDir(), "any path inside the repository")
			force := fs.BoolP("force", "f", false, "delete even when unmerged")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() > 1 {
				return usagef("expected at most one branch name")
			}
			return b.withEnv([]string{*dir}, func(env *Env) error {
				res, err := env.Orchestrator().DeleteBranch(ctx, workflow.DeleteBranchOptions{
					Dir:   *dir,
					Name:  fs.Arg(0),
					Force: *force,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Stdout, "Deleted branch %s\n", res.Name)
				if res.Backup != "" {
					fmt.Fprintf(env.Stdout, "Backup written to %s\n", res.Backup)
				}
				return nil
			})
		},
	})
}

func registerRemoteCommands(b *builder) {
	b.app.AddCommand(&Command{
		Name:    "fetch",
		Summary: "Fetch from a remote, or all remotes",
		Usage:   "Usage: wtsync fetch [remote] [--dir <repo>]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("fetch")
			dir := fs.StringP("dir", "C", currentDir(), "any path inside the repository")
			if err := parse(fs, args); err != nil {
				return err
			}
			return b.withEnv([]string{*dir}, func(env *Env) error {
				return env.Orchestrator().Fetch(ctx, *dir, fs.Arg(0))
			})
		},
	})

	b.app.AddCommand(&Command{
		Name:    "pull",
		Summary: "Pull the upstream of the current branch",
		Usage:   "Usage: wtsync pull [--dir <worktree>]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("pull")
			dir := fs.StringP("dir", "C", currentDir(), "worktree to update")
			if err := parse(fs, args); err != nil {
				return err
			}
			return b.withEnv([]string{*dir}, func(env *Env) error {
				return env.Orchestrator().Pull(ctx, *dir)
			})
		},
	})

	b.app.AddCommand(&Command{
		Name:    "push",
		Summary: "Push the current branch",
		Usage:   "Usage: wtsync push [remote] [--dir <worktree>]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("push")
			dir := fs.StringP("dir", "C", currentDir(), "worktree to push")
			if err := parse(fs, args); err != nil {
				return err
			}
			return b.withEnv([]string{*dir}, func(env *Env) error {
				return env.Orchestrator().Push(ctx, *dir, fs.Arg(0))
			})
		},
	})
}
