// pattern: Imperative Shell

package workflow

import (
	"context"
	"fmt"
	"strings"

	"wtsync/internal/git"
	"wtsync/internal/worktree"
)

// refList returns the ref list of main, from the cache when present. A live
// query is written back with the HEAD marker removed.
func (o *Orchestrator) refList(ctx context.Context, main string) []git.RefRecord {
	if o.cache != nil {
		if refs, ok := o.cache.RefList(main); ok {
			return refs
		}
	}
	refs := o.repo.ListRefs(ctx, main, git.AllRefs, git.PickerFields)
	if len(refs) > 0 && o.cache != nil {
		if err := o.cache.StoreRefList(main, git.WithoutHeadMarker(refs)); err != nil {
			o.logger.Warn("ref list not cached", "main", main, "error", err)
		}
	}
	return refs
}

// RefOptions turns ref records into pick options. Remote HEAD aliases are
// skipped.
func RefOptions(refs []git.RefRecord) []Option {
	opts := make([]Option, 0, len(refs))
	for _, r := range refs {
		name := r.ShortName()
		if r.IsRemote() && strings.HasSuffix(r[git.FieldRefName], "/HEAD") {
			continue
		}
		kind, icon := "commit", "git-commit"
		switch {
		case r.IsBranch():
			kind, icon = "branch", "git-branch"
		case r.IsRemote():
			kind, icon = "remote branch", "cloud"
		case r.IsTag():
			kind, icon = "tag", "tag"
		}
		desc := kind
		if h := r[git.FieldObjectShort]; h != "" {
			desc += " " + h
		}
		if wt := r[git.FieldWorktreePath]; wt != "" {
			desc += " (checked out at " + wt + ")"
		}
		if r.IsCurrent() {
			icon = "check"
		}
		detail := r[git.FieldSubject]
		if a := r[git.FieldAuthorName]; a != "" {
			detail = strings.TrimSpace(a + " · " + detail)
		}
		opts = append(opts, Option{Label: name, Description: desc, Detail: detail, Icon: icon, Value: name})
	}
	return opts
}

// branchNameValidator returns an Input validator combining local rules,
// git check-ref-format and an existence check.
func (o *Orchestrator) branchNameValidator(ctx context.Context, main string) func(string) string {
	return func(name string) string {
		name = strings.TrimSpace(name)
		if err := worktree.ValidateBranchName(name); err != nil {
			return err.Error()
		}
		if !o.repo.CheckRefFormat(ctx, main, name) {
			return fmt.Sprintf("%q is not a valid branch name", name)
		}
		if o.repo.RefExists(ctx, main, "refs/heads/"+name) {
			return fmt.Sprintf("branch %q already exists", name)
		}
		return ""
	}
}

func (o *Orchestrator) validateNewBranch(ctx context.Context, main, name string) error {
	if msg := o.branchNameValidator(ctx, main)(name); msg != "" {
		return invalid("branch", "%s", msg)
	}
	return nil
}
