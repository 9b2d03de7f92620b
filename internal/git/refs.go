// pattern: Functional Core

package git

import "strings"

// RefKind selects which namespaces ListRefs covers. Kinds combine with |.
type RefKind int

const (
	Heads RefKind = 1 << iota
	Remotes
	Tags

	AllRefs = Heads | Remotes | Tags
)

func (k RefKind) patterns() []string {
	var out []string
	if k&Heads != 0 {
		out = append(out, "refs/heads")
	}
	if k&Remotes != 0 {
		out = append(out, "refs/remotes")
	}
	if k&Tags != 0 {
		out = append(out, "refs/tags")
	}
	return out
}

// Common for-each-ref field names.
const (
	FieldRefName        = "refname"
	FieldShortName      = "refname:short"
	FieldObjectShort    = "objectname:short"
	FieldObjectName     = "objectname"
	FieldHead           = "HEAD"
	FieldWorktreePath   = "worktreepath"
	FieldUpstream       = "upstream"
	FieldUpstreamShort  = "upstream:short"
	FieldUpstreamRemote = "upstream:remotename"
	FieldUpstreamRef    = "upstream:remoteref"
	FieldAuthorName     = "authorname"
	FieldAuthorDate     = "authordate"
	FieldSubject        = "subject"
)

// PickerFields is the field set cached per main folder for ref pickers.
var PickerFields = []string{
	FieldRefName,
	FieldShortName,
	FieldObjectShort,
	FieldHead,
	FieldWorktreePath,
	FieldUpstreamShort,
	FieldAuthorName,
	FieldAuthorDate,
	FieldSubject,
}

// UpstreamFields is what the list builder needs to resolve upstreams.
var UpstreamFields = []string{
	FieldRefName,
	FieldUpstreamRemote,
	FieldUpstreamRef,
	FieldUpstreamShort,
}

// IsBranch reports whether the record is a local branch.
func (r RefRecord) IsBranch() bool { return strings.HasPrefix(r[FieldRefName], "refs/heads/") }

// IsRemote reports whether the record is a remote-tracking branch.
func (r RefRecord) IsRemote() bool { return strings.HasPrefix(r[FieldRefName], "refs/remotes/") }

// IsTag reports whether the record is a tag.
func (r RefRecord) IsTag() bool { return strings.HasPrefix(r[FieldRefName], "refs/tags/") }

// IsCurrent reports whether the record carries the HEAD marker.
func (r RefRecord) IsCurrent() bool { return strings.TrimSpace(r[FieldHead]) == "*" }

// ShortName returns refname:short when requested, else strips the namespace.
func (r RefRecord) ShortName() string {
	if s, ok := r[FieldShortName]; ok && s != "" {
		return s
	}
	return ShortRefName(r[FieldRefName])
}

// ShortRefName strips refs/heads/, refs/remotes/ or refs/tags/.
func ShortRefName(ref string) string {
	for _, prefix := range []string{"refs/heads/", "refs/remotes/", "refs/tags/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}

// WithoutHeadMarker returns a copy of refs with the HEAD field blanked, so a
// cached list never marks a stale branch as current.
func WithoutHeadMarker(refs []RefRecord) []RefRecord {
	out := make([]RefRecord, len(refs))
	for i, r := range refs {
		c := make(RefRecord, len(r))
		for k, v := range r {
			c[k] = v
		}
		if _, ok := c[FieldHead]; ok {
			c[FieldHead] = ""
		}
		out[i] = c
	}
	return out
}

// SplitRemoteRef splits "origin/feature/x" into "origin" and "feature/x".
func SplitRemoteRef(short string) (remote, branch string, ok bool) {
	remote, branch, ok = strings.Cut(short, "/")
	if !ok || remote == "" || branch == "" {
		return "", "", false
	}
	return remote, branch, true
}
