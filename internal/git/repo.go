// pattern: Imperative Shell

package git

import (
	"context"
	"path/filepath"
	"strings"

	"wtsync/internal/logging"
	"wtsync/internal/process"
)

// Runner is the subset of process.Runner the query layer needs.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (process.Result, error)
	Query(ctx context.Context, dir string, args ...string) (process.Result, error)
	Stream(ctx context.Context, dir string, onLine func(process.Line), args ...string) (process.Result, error)
}

// Repo names the git operations used by the rest of the program. Read-only
// lookups swallow failures and return zero values; mutating operations
// return *process.Error or process.ErrCancelled.
type Repo struct {
	runner Runner
	logger *logging.ScopedLogger
}

// New creates a Repo over runner.
func New(runner Runner, logger *logging.ScopedLogger) *Repo {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Repo{runner: runner, logger: logger}
}

// query runs a read-only command. ok is false on any failure or cancellation.
func (r *Repo) query(ctx context.Context, dir string, args ...string) (string, bool) {
	res, err := r.runner.Query(ctx, dir, args...)
	if err != nil || res.Cancelled {
		return "", false
	}
	return res.Stdout, true
}

// mutate runs a mutating command and maps cancellation to ErrCancelled.
func (r *Repo) mutate(ctx context.Context, dir string, args ...string) (process.Result, error) {
	res, err := r.runner.Run(ctx, dir, args...)
	if res.Cancelled {
		return res, process.ErrCancelled
	}
	return res, err
}

func (r *Repo) stream(ctx context.Context, dir string, onLine func(process.Line), args ...string) error {
	if onLine == nil {
		_, err := r.mutate(ctx, dir, args...)
		return err
	}
	res, err := r.runner.Stream(ctx, dir, onLine, args...)
	if res.Cancelled {
		return process.ErrCancelled
	}
	return err
}

// ListWorktrees returns the porcelain worktree records in git's order. The
// error is returned because the list builder cannot proceed without it.
func (r *Repo) ListWorktrees(ctx context.Context, dir string) ([]PorcelainRecord, error) {
	res, err := r.runner.Query(ctx, dir, "worktree", "list", "--porcelain")
	if res.Cancelled {
		return nil, process.ErrCancelled
	}
	if err != nil {
		return nil, err
	}
	return ParsePorcelain(res.Stdout), nil
}

// CommonDir returns the absolute common git directory shared by all
// worktrees of the repository containing dir.
func (r *Repo) CommonDir(ctx context.Context, dir string) string {
	out, ok := r.query(ctx, dir, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if !ok {
		return ""
	}
	return filepath.Clean(strings.TrimSpace(out))
}

// MainFolder returns the main worktree path of the repository containing
// dir, or "" when dir is not inside a repository.
func (r *Repo) MainFolder(ctx context.Context, dir string) string {
	common := r.CommonDir(ctx, dir)
	if common == "" || common == "." {
		return ""
	}
	if filepath.Base(common) == ".git" {
		return filepath.Dir(common)
	}
	// Bare repositories have no .git suffix; the common dir is the repository.
	return common
}

// TopLevel returns the root of the worktree containing dir.
func (r *Repo) TopLevel(ctx context.Context, dir string) string {
	out, _ := r.query(ctx, dir, "rev-parse", "--show-toplevel")
	return strings.TrimSpace(out)
}

// IsRepository reports whether dir is inside a git repository at all.
func (r *Repo) IsRepository(ctx context.Context, dir string) bool {
	_, ok := r.query(ctx, dir, "rev-parse", "--git-dir")
	return ok
}

// IsInsideWorkTree reports whether dir is inside a checked-out worktree.
func (r *Repo) IsInsideWorkTree(ctx context.Context, dir string) bool {
	out, _ := r.query(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return strings.TrimSpace(out) == "true"
}

// IsBare reports whether the repository containing dir is bare.
func (r *Repo) IsBare(ctx context.Context, dir string) bool {
	out, _ := r.query(ctx, dir, "rev-parse", "--is-bare-repository")
	return strings.TrimSpace(out) == "true"
}

// ListRefs lists refs of the given kinds with the requested fields: refs
// with an upstream first, then by refname, then by committer date, all
// descending. git treats the last --sort key as primary, so the keys are
// passed lowest priority first.
func (r *Repo) ListRefs(ctx context.Context, dir string, kinds RefKind, fields []string) []RefRecord {
	fields = dedupeFields(fields)
	args := []string{
		"for-each-ref",
		"--sort=-committerdate",
		"--sort=-refname",
		"--sort=-upstream",
		"--format=" + RefFormat(fields),
	}
	args = append(args, kinds.patterns()...)

	out, ok := r.query(ctx, dir, args...)
	if !ok {
		return nil
	}
	refs, err := ParseRefs(fields, out)
	if err != nil {
		r.logger.Error("unparseable ref listing", "dir", dir, "error", err)
		return nil
	}
	return refs
}

// AheadBehind counts commits in left...right. ok is false when git failed or
// its output could not be read, which is not the same as zero divergence.
func (r *Repo) AheadBehind(ctx context.Context, dir, left, right string) (AheadBehind, bool) {
	out, ok := r.query(ctx, dir, "rev-list", "--left-right", "--count", left+"..."+right)
	if !ok {
		return AheadBehind{}, false
	}
	ab, ok := ParseAheadBehind(out)
	if !ok {
		r.logger.Error("unparseable ahead/behind output", "dir", dir, "range", left+"..."+right, "output", out)
	}
	return ab, ok
}

// CurrentBranch returns the short name of the checked-out branch, "" when
// HEAD is detached.
func (r *Repo) CurrentBranch(ctx context.Context, dir string) string {
	out, _ := r.query(ctx, dir, "symbolic-ref", "--short", "-q", "HEAD")
	return strings.TrimSpace(out)
}

// Describe returns `describe --all --exact-match` for rev, e.g. "tags/v1.2"
// or "heads/main", or "" when no ref points exactly at rev.
func (r *Repo) Describe(ctx context.Context, dir, rev string) string {
	out, _ := r.query(ctx, dir, "describe", "--all", "--exact-match", rev)
	return strings.TrimSpace(out)
}

// NameRev returns a symbolic name for rev, "" when git has none.
func (r *Repo) NameRev(ctx context.Context, dir, rev string) string {
	out, _ := r.query(ctx, dir, "name-rev", "--name-only", "--no-undefined", rev)
	return strings.TrimSpace(out)
}

// LastCommit summarizes the commit at rev (HEAD when empty).
func (r *Repo) LastCommit(ctx context.Context, dir, rev string) (Commit, bool) {
	if rev == "" {
		rev = "HEAD"
	}
	out, ok := r.query(ctx, dir, "log", "-1", "--format="+commitFormat, rev, "--")
	if !ok {
		return Commit{}, false
	}
	return parseCommit(out)
}

// Status returns the short status of the worktree at dir.
func (r *Repo) Status(ctx context.Context, dir string) []StatusEntry {
	out, ok := r.query(ctx, dir, "status", "--short")
	if !ok {
		return nil
	}
	return ParseShortStatus(out)
}

// ListRemotes returns the configured remotes.
func (r *Repo) ListRemotes(ctx context.Context, dir string) []Remote {
	out, ok := r.query(ctx, dir, "remote", "-v")
	if !ok {
		return nil
	}
	return ParseRemotes(out)
}

// CheckRefFormat reports whether name is acceptable as a branch name.
func (r *Repo) CheckRefFormat(ctx context.Context, dir, name string) bool {
	_, ok := r.query(ctx, dir, "check-ref-format", "--branch", name)
	return ok
}

// RefExists reports whether the fully qualified ref resolves.
func (r *Repo) RefExists(ctx context.Context, dir, ref string) bool {
	_, ok := r.query(ctx, dir, "rev-parse", "--verify", "--quiet", ref)
	return ok
}
