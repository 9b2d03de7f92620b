// pattern: Imperative Shell

package workflow

import (
	"context"
	"fmt"
	"slices"

	"wtsync/internal/git"
)

// UnknownPathPlaceholder is shown for prune candidates whose gitdir file
// could not be read.
const UnknownPathPlaceholder = "(unknown path)"

// PruneOptions controls PruneWorktrees.
type PruneOptions struct {
	Dir string
	Yes bool // confirm without asking
}

// PruneResult lists what was found and what git removed.
type PruneResult struct {
	Candidates []git.PruneCandidate
	Removed    []string
}

// PruneItems renders candidates for the confirmation list.
func PruneItems(candidates []git.PruneCandidate) []string {
	items := make([]string, len(candidates))
	for i, c := range candidates {
		items[i] = fmt.Sprintf("%s  [%s] %s", c.DisplayPath(UnknownPathPlaceholder), c.Name, c.Reason)
	}
	return items
}

// PruneWorktrees removes stale worktree records in two phases: a dry run
// whose exact paths are confirmed, then the real prune. Candidates without a
// readable path are listed with a placeholder and still counted.
func (o *Orchestrator) PruneWorktrees(ctx context.Context, opts PruneOptions) (PruneResult, error) {
	const action = "Prune worktrees"
	res, err := o.prune(ctx, opts)
	return res, o.finish(action, err)
}

func (o *Orchestrator) prune(ctx context.Context, opts PruneOptions) (PruneResult, error) {
	var res PruneResult
	main, err := o.mainFolder(ctx, opts.Dir)
	if err != nil {
		return res, err
	}

	res.Candidates, err = o.repo.PruneDryRun(ctx, main)
	if err != nil {
		return res, err
	}
	if len(res.Candidates) == 0 {
		o.info("Nothing to prune")
		return res, nil
	}

	if !opts.Yes {
		if o.prompt == nil {
			return res, invalid("confirm", "pruning %d worktree(s) needs confirmation", len(res.Candidates))
		}
		ok, err := o.prompt.Confirm(ctx, "Prune worktrees",
			fmt.Sprintf("Remove %d stale worktree record(s)? This cannot be undone.", len(res.Candidates)),
			PruneItems(res.Candidates))
		if err != nil {
			return res, err
		}
		if !ok {
			return res, ErrCancelled
		}
	}

	res.Removed, err = o.repo.Prune(ctx, main)
	if err != nil {
		return res, err
	}
	if !sameNames(res.Candidates, res.Removed) {
		o.logger.Warn("prune removed a different set than the dry run reported",
			"expected", len(res.Candidates), "removed", res.Removed)
	}
	o.logger.Info("worktrees pruned", "main", main, "count", len(res.Removed))
	o.changed("prune", main, "")
	o.info(fmt.Sprintf("Pruned %d worktree record(s)", len(res.Removed)))
	return res, nil
}

func sameNames(candidates []git.PruneCandidate, removed []string) bool {
	want := make([]string, len(candidates))
	for i, c := range candidates {
		want[i] = c.Name
	}
	got := slices.Clone(removed)
	slices.Sort(want)
	slices.Sort(got)
	return slices.Equal(want, got)
}
