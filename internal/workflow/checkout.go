// pattern: Imperative Shell

package workflow

import (
	"context"

	"wtsync/internal/git"
)

// CheckoutOptions preset answers for Checkout.
type CheckoutOptions struct {
	Dir    string // worktree to switch
	Ref    string // asked for when empty
	Detach bool
}

// Checkout switches the worktree at opts.Dir to a ref, resolving remote
// branches to local tracking branches.
func (o *Orchestrator) Checkout(ctx context.Context, opts CheckoutOptions) (git.RefPlan, error) {
	const action = "Checkout"
	plan, err := o.checkout(ctx, opts)
	return plan, o.finish(action, err)
}

func (o *Orchestrator) checkout(ctx context.Context, opts CheckoutOptions) (git.RefPlan, error) {
	main, err := o.mainFolder(ctx, opts.Dir)
	if err != nil {
		return git.RefPlan{}, err
	}
	ref := opts.Ref
	if ref == "" {
		if o.prompt == nil {
			return git.RefPlan{}, invalid("ref", "no ref given")
		}
		choice, err := o.prompt.Pick(ctx, PickRequest{
			Title:       "Select the ref to check out",
			Placeholder: "branch, remote branch or tag",
			Options:     RefOptions(o.refList(ctx, main)),
		})
		if err != nil {
			return git.RefPlan{}, err
		}
		ref = choice.Value
	}

	plan := o.repo.ResolveRef(ctx, opts.Dir, ref)
	gopts := git.CheckoutOptions{Detach: opts.Detach, IgnoreOtherWorktrees: o.cfg.Checkout.IgnoreOtherWorktrees}
	err = o.progress.WithProgress(ctx, "Checking out "+ref, false, func(ctx context.Context, _ func(string)) error {
		return o.repo.Checkout(ctx, opts.Dir, plan, gopts)
	})
	if err != nil {
		return plan, err
	}
	o.logger.Info("checked out", "dir", opts.Dir, "ref", ref, "branch", plan.Branch)
	o.changed("checkout", main, opts.Dir)
	return plan, nil
}
