// pattern: Imperative Shell

package workflow

import (
	"context"

	"wtsync/internal/git"
	"wtsync/internal/process"
)

// Fetch fetches remote (all remotes when empty) for the repository of dir.
func (o *Orchestrator) Fetch(ctx context.Context, dir, remote string) error {
	return o.finish("Fetch", o.remoteOp(ctx, dir, "fetch", "Fetching", func(ctx context.Context, onLine func(process.Line)) error {
		return o.repo.Fetch(ctx, dir, remote, onLine)
	}))
}

// Pull pulls the upstream of the current branch of dir.
func (o *Orchestrator) Pull(ctx context.Context, dir string) error {
	return o.finish("Pull", o.remoteOp(ctx, dir, "pull", "Pulling", func(ctx context.Context, onLine func(process.Line)) error {
		return o.repo.Pull(ctx, dir, onLine)
	}))
}

// Push pushes the current branch of dir. A branch without upstream is
// pushed to remote (the first configured remote when empty) and tracked.
func (o *Orchestrator) Push(ctx context.Context, dir, remote string) error {
	return o.finish("Push", o.remoteOp(ctx, dir, "push", "Pushing", func(ctx context.Context, onLine func(process.Line)) error {
		branch := o.repo.CurrentBranch(ctx, dir)
		if branch == "" {
			return invalid("branch", "HEAD is detached; check out a branch to push")
		}
		upstream := ""
		for _, r := range o.repo.ListRefs(ctx, dir, git.Heads, []string{git.FieldRefName, git.FieldUpstreamShort}) {
			if r[git.FieldRefName] == "refs/heads/"+branch {
				upstream = r[git.FieldUpstreamShort]
			}
		}
		if upstream != "" && remote == "" {
			return o.repo.Push(ctx, dir, "", "", false, onLine)
		}
		if remote == "" {
			remotes := o.repo.ListRemotes(ctx, dir)
			if len(remotes) == 0 {
				return invalid("remote", "no remote configured")
			}
			remote = remotes[0].Name
		}
		return o.repo.Push(ctx, dir, remote, branch, upstream == "", onLine)
	}))
}

func (o *Orchestrator) remoteOp(ctx context.Context, dir, verb, title string, fn func(context.Context, func(process.Line)) error) error {
	main, err := o.mainFolder(ctx, dir)
	if err != nil {
		return err
	}
	log := o.logger.With("op", verb, "dir", dir)
	err = o.progress.WithProgress(ctx, title+"…", true, func(ctx context.Context, report func(string)) error {
		return fn(ctx, func(l process.Line) {
			log.Debug("git output", "line", l.Text)
			report(l.Text)
		})
	})
	if err != nil {
		return err
	}
	o.changed(verb, main, dir)
	return nil
}
