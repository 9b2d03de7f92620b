// pattern: Imperative Shell

package worktree

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"wtsync/internal/git"
	"wtsync/internal/logging"
)

// Source is the part of git.Repo the builder reads.
type Source interface {
	ListWorktrees(ctx context.Context, dir string) ([]git.PorcelainRecord, error)
	MainFolder(ctx context.Context, dir string) string
	ListRefs(ctx context.Context, dir string, kinds git.RefKind, fields []string) []git.RefRecord
	ListRemotes(ctx context.Context, dir string) []git.Remote
	Describe(ctx context.Context, dir, rev string) string
	AheadBehind(ctx context.Context, dir, left, right string) (git.AheadBehind, bool)
}

// ListOptions controls List.
type ListOptions struct {
	// SkipRemote disables upstream lookup and ahead/behind counts.
	SkipRemote bool
}

// maxParallel bounds concurrent git processes per List or Enrich call.
const maxParallel = 16

// Builder turns repository state into Descriptors.
type Builder struct {
	src    Source
	logger *logging.ScopedLogger
}

// NewBuilder creates a Builder reading from src.
func NewBuilder(src Source, logger *logging.ScopedLogger) *Builder {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Builder{src: src, logger: logger}
}

// List returns the worktrees of the repository containing root in the order
// git lists them.
func (b *Builder) List(ctx context.Context, root string, opts ListOptions) ([]Descriptor, error) {
	var (
		records    []git.PorcelainRecord
		mainFolder string
		upstreams  []git.RefRecord
		remotes    []git.Remote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = b.src.ListWorktrees(gctx, root)
		return err
	})
	g.Go(func() error {
		mainFolder = b.src.MainFolder(gctx, root)
		return nil
	})
	if !opts.SkipRemote {
		g.Go(func() error {
			upstreams = b.src.ListRefs(gctx, root, git.Heads, git.UpstreamFields)
			return nil
		})
		g.Go(func() error {
			remotes = b.src.ListRemotes(gctx, root)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("listing worktrees of %s: %w", root, err)
	}

	byRef := make(map[string]git.RefRecord, len(upstreams))
	for _, rec := range upstreams {
		byRef[rec[git.FieldRefName]] = rec
	}

	out := make([]Descriptor, len(records))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallel)
	for i, rec := range records {
		eg.Go(func() error {
			out[i] = b.describe(ectx, rec, mainFolder, byRef, remotes, opts)
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.logger.Debug("worktree list built", "root", root, "count", len(out), "skipRemote", opts.SkipRemote)
	return out, nil
}

func (b *Builder) describe(ctx context.Context, rec git.PorcelainRecord, mainFolder string,
	byRef map[string]git.RefRecord, remotes []git.Remote, opts ListOptions) Descriptor {

	describe := ""
	if rec["branch"] == "" && !rec.Has("bare") && rec["HEAD"] != "" {
		describe = b.src.Describe(ctx, rec["worktree"], rec["HEAD"])
	}
	d := fromPorcelain(rec, mainFolder, describe)

	if opts.SkipRemote || !d.IsBranch {
		return d
	}
	if up, ok := byRef[rec["branch"]]; ok {
		d.Remote, d.RemoteRef = resolveUpstream(up, remotes)
	}
	if d.HasUpstream() {
		b.attachAheadBehind(ctx, &d)
	}
	return d
}

func (b *Builder) attachAheadBehind(ctx context.Context, d *Descriptor) {
	ab, ok := b.src.AheadBehind(ctx, d.Path, d.Branch, d.Upstream())
	if !ok {
		return
	}
	ahead, behind := ab.Ahead, ab.Behind
	d.Ahead, d.Behind = &ahead, &behind
}

// Enrich attaches upstream and ahead/behind counts to descriptors built with
// SkipRemote. It returns a new slice; the input is not modified.
func (b *Builder) Enrich(ctx context.Context, list []Descriptor) []Descriptor {
	out := make([]Descriptor, len(list))
	copy(out, list)

	type repoInfo struct {
		byRef   map[string]git.RefRecord
		remotes []git.Remote
	}
	repos := make(map[string]*repoInfo)
	for _, d := range out {
		if !d.IsBranch {
			continue
		}
		key := d.Root
		if key == "" {
			key = d.Path
		}
		if _, ok := repos[key]; ok {
			continue
		}
		info := &repoInfo{byRef: map[string]git.RefRecord{}, remotes: b.src.ListRemotes(ctx, key)}
		for _, rec := range b.src.ListRefs(ctx, key, git.Heads, git.UpstreamFields) {
			info.byRef[rec[git.FieldRefName]] = rec
		}
		repos[key] = info
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i := range out {
		d := &out[i]
		if !d.IsBranch {
			continue
		}
		key := d.Root
		if key == "" {
			key = d.Path
		}
		info := repos[key]
		if up, ok := info.byRef["refs/heads/"+d.Branch]; ok {
			d.Remote, d.RemoteRef = resolveUpstream(up, info.remotes)
		}
		if !d.HasUpstream() {
			continue
		}
		g.Go(func() error {
			b.attachAheadBehind(gctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
