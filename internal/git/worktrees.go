// pattern: Imperative Shell

package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"wtsync/internal/process"
)

// AddOptions controls `worktree add`.
type AddOptions struct {
	Ref       string // commit-ish to check out; empty uses HEAD
	NewBranch string // create this branch at Ref (-b)
	Track     bool   // with NewBranch, set Ref as upstream
	Detach    bool
	Force     bool
}

// AddWorktree creates a worktree at path.
func (r *Repo) AddWorktree(ctx context.Context, dir, path string, opts AddOptions) error {
	args := []string{"worktree", "add"}
	if opts.Force {
		args = append(args, "--force")
	}
	switch {
	case opts.NewBranch != "":
		args = append(args, "-b", opts.NewBranch)
		if opts.Track {
			args = append(args, "--track")
		} else {
			args = append(args, "--no-track")
		}
	case opts.Detach:
		args = append(args, "--detach")
	}
	args = append(args, path)
	if opts.Ref != "" {
		args = append(args, opts.Ref)
	}
	_, err := r.mutate(ctx, dir, args...)
	return err
}

// RemoveWorktree removes the worktree at path. force also removes dirty or
// locked worktrees.
func (r *Repo) RemoveWorktree(ctx context.Context, dir, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		// Twice so locked worktrees go too.
		args = append(args, "--force", "--force")
	}
	_, err := r.mutate(ctx, dir, append(args, path)...)
	return err
}

// MoveWorktree moves the worktree at from to to.
func (r *Repo) MoveWorktree(ctx context.Context, dir, from, to string) error {
	_, err := r.mutate(ctx, dir, "worktree", "move", from, to)
	return err
}

// LockWorktree locks the worktree at path with an optional reason.
func (r *Repo) LockWorktree(ctx context.Context, dir, path, reason string) error {
	args := []string{"worktree", "lock"}
	if reason != "" {
		args = append(args, "--reason", reason)
	}
	_, err := r.mutate(ctx, dir, append(args, path)...)
	return err
}

// UnlockWorktree unlocks the worktree at path.
func (r *Repo) UnlockWorktree(ctx context.Context, dir, path string) error {
	_, err := r.mutate(ctx, dir, "worktree", "unlock", path)
	return err
}

// RepairWorktree repairs administrative links. With no paths git repairs
// the worktree containing dir and the main worktree's links.
func (r *Repo) RepairWorktree(ctx context.Context, dir string, paths ...string) error {
	_, err := r.mutate(ctx, dir, append([]string{"worktree", "repair"}, paths...)...)
	return err
}

// PruneCandidate is a worktree git would prune. Path is nil when the
// recorded gitdir pointer could not be read.
type PruneCandidate struct {
	Name   string  `json:"name"`
	Path   *string `json:"path"`
	Reason string  `json:"reason"`
}

// DisplayPath returns the resolved path or placeholder.
func (c PruneCandidate) DisplayPath(placeholder string) string {
	if c.Path == nil {
		return placeholder
	}
	return *c.Path
}

// PruneDryRun reports what `worktree prune` would remove, resolving each
// administrative name to the worktree path recorded in its gitdir file.
func (r *Repo) PruneDryRun(ctx context.Context, dir string) ([]PruneCandidate, error) {
	res, err := r.runner.Query(ctx, dir, "worktree", "prune", "--dry-run", "--verbose")
	if res.Cancelled {
		return nil, process.ErrCancelled
	}
	if err != nil {
		return nil, err
	}

	// git writes the report to stderr; older versions used stdout.
	reports := ParsePruneReport(res.Stderr + "\n" + res.Stdout)
	if len(reports) == 0 {
		return nil, nil
	}

	common := r.CommonDir(ctx, dir)
	candidates := make([]PruneCandidate, 0, len(reports))
	for _, rep := range reports {
		c := PruneCandidate{Name: rep.Name, Reason: rep.Reason}
		if common != "" {
			c.Path = ReadGitdirPointer(filepath.Join(common, "worktrees", rep.Name, "gitdir"))
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Prune removes stale worktree records and returns the names git reported.
func (r *Repo) Prune(ctx context.Context, dir string) ([]string, error) {
	res, err := r.mutate(ctx, dir, "worktree", "prune", "--verbose")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, rep := range ParsePruneReport(res.Stderr + "\n" + res.Stdout) {
		names = append(names, rep.Name)
	}
	return names, nil
}

// ReadGitdirPointer reads a worktrees/<name>/gitdir file and returns the
// worktree directory it names, or nil if it cannot be read.
func ReadGitdirPointer(file string) *string {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil
	}
	p := strings.TrimSpace(string(data))
	if p == "" {
		return nil
	}
	if filepath.Base(p) == ".git" {
		p = filepath.Dir(p)
	}
	return &p
}
