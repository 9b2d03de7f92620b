// pattern: Imperative Shell

package git

import (
	"context"
	"strings"

	"wtsync/internal/process"
)

// Resolution says how a ref name given by the user maps onto branches.
type Resolution int

const (
	// ResolveLocal: a local branch of that name exists.
	ResolveLocal Resolution = iota
	// ResolveTrackingLocal: a remote branch that a local branch already tracks.
	ResolveTrackingLocal
	// ResolveNewTracking: a remote branch with no local counterpart.
	ResolveNewTracking
	// ResolveOther: a tag, a commit or anything else; checked out detached.
	ResolveOther
)

// RefPlan is the outcome of ResolveRef.
type RefPlan struct {
	Kind   Resolution
	Ref    string // what the user asked for
	Branch string // local branch to switch to or create
}

// ResolveRef decides how ref should be checked out: switch to the local
// branch already tracking a remote branch, create a tracking branch for an
// untracked remote branch, switch to a local branch, or detach. ref may be
// a full refname or a refname:short value, which git disambiguates as
// heads/<x> or remotes/<x> when a tag or branch shares the name.
func (r *Repo) ResolveRef(ctx context.Context, dir, ref string) RefPlan {
	ref = strings.TrimPrefix(ref, "refs/remotes/")
	remote := ref
	if rest, ok := strings.CutPrefix(ref, "remotes/"); ok && !r.RefExists(ctx, dir, "refs/remotes/"+ref) {
		remote = rest
	}

	if r.RefExists(ctx, dir, "refs/remotes/"+remote) {
		for _, rec := range r.ListRefs(ctx, dir, Heads, []string{FieldRefName, FieldUpstreamShort}) {
			if rec[FieldUpstreamShort] == remote {
				return RefPlan{Kind: ResolveTrackingLocal, Ref: remote, Branch: ShortRefName(rec[FieldRefName])}
			}
		}
		if _, branch, ok := SplitRemoteRef(remote); ok {
			return RefPlan{Kind: ResolveNewTracking, Ref: remote, Branch: branch}
		}
	}

	local := strings.TrimPrefix(ref, "refs/heads/")
	if r.RefExists(ctx, dir, "refs/heads/"+local) {
		return RefPlan{Kind: ResolveLocal, Ref: ref, Branch: local}
	}
	if rest, ok := strings.CutPrefix(local, "heads/"); ok && r.RefExists(ctx, dir, "refs/heads/"+rest) {
		return RefPlan{Kind: ResolveLocal, Ref: ref, Branch: rest}
	}
	return RefPlan{Kind: ResolveOther, Ref: ref}
}

// AddOptions returns the `worktree add` options that check out plan.
func (p RefPlan) AddOptions() AddOptions {
	switch p.Kind {
	case ResolveLocal, ResolveTrackingLocal:
		return AddOptions{Ref: p.Branch}
	case ResolveNewTracking:
		return AddOptions{Ref: p.Ref, NewBranch: p.Branch, Track: true}
	default:
		return AddOptions{Ref: p.Ref, Detach: true}
	}
}

// CheckoutOptions controls Checkout.
type CheckoutOptions struct {
	Detach               bool // detach even when ref is a branch
	IgnoreOtherWorktrees bool
}

// Checkout switches the worktree at dir as plan, from ResolveRef, says.
func (r *Repo) Checkout(ctx context.Context, dir string, plan RefPlan, opts CheckoutOptions) error {
	args := []string{"switch"}
	if opts.IgnoreOtherWorktrees {
		args = append(args, "--ignore-other-worktrees")
	}
	switch {
	case opts.Detach || plan.Kind == ResolveOther:
		args = append(args, "--detach", plan.Ref)
	case plan.Kind == ResolveNewTracking:
		args = append(args, "-c", plan.Branch, "--track", plan.Ref)
	default:
		args = append(args, plan.Branch)
	}
	_, err := r.mutate(ctx, dir, args...)
	return err
}

// CreateBranch creates name at base without switching to it.
func (r *Repo) CreateBranch(ctx context.Context, dir, name, base string, track bool) error {
	args := []string{"branch"}
	if track {
		args = append(args, "--track")
	} else {
		args = append(args, "--no-track")
	}
	args = append(args, name)
	if base != "" {
		args = append(args, base)
	}
	_, err := r.mutate(ctx, dir, args...)
	return err
}

// DeleteBranch deletes a local branch; force deletes it even when unmerged.
func (r *Repo) DeleteBranch(ctx context.Context, dir, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.mutate(ctx, dir, "branch", flag, name)
	return err
}

// RenameBranch renames a local branch.
func (r *Repo) RenameBranch(ctx context.Context, dir, oldName, newName string) error {
	_, err := r.mutate(ctx, dir, "branch", "-m", oldName, newName)
	return err
}

// BundleCreate writes refs into a bundle file, used as a backup before a
// forced branch delete.
func (r *Repo) BundleCreate(ctx context.Context, dir, file string, refs ...string) error {
	_, err := r.mutate(ctx, dir, append([]string{"bundle", "create", file}, refs...)...)
	return err
}

// Fetch fetches remote, or all remotes when remote is empty.
func (r *Repo) Fetch(ctx context.Context, dir, remote string, onLine func(process.Line)) error {
	args := []string{"fetch", "--progress", "--prune"}
	if remote == "" {
		args = append(args, "--all")
	} else {
		args = append(args, remote)
	}
	return r.stream(ctx, dir, onLine, args...)
}

// Pull pulls the current branch's upstream into the worktree at dir.
func (r *Repo) Pull(ctx context.Context, dir string, onLine func(process.Line)) error {
	return r.stream(ctx, dir, onLine, "pull", "--progress")
}

// Push pushes branch to remote. setUpstream records remote/branch as the
// branch's upstream.
func (r *Repo) Push(ctx context.Context, dir, remote, branch string, setUpstream bool, onLine func(process.Line)) error {
	args := []string{"push", "--progress"}
	if setUpstream {
		args = append(args, "--set-upstream")
	}
	if remote != "" {
		args = append(args, remote)
		if branch != "" {
			args = append(args, branch)
		}
	}
	return r.stream(ctx, dir, onLine, args...)
}

// IsNotFullyMerged reports whether err is git refusing `branch -d` on an
// unmerged branch.
func IsNotFullyMerged(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not fully merged")
}
