// pattern: Functional Core

package worktree

import (
	"path/filepath"
	"regexp"
	"strings"

	"wtsync/internal/git"
)

// Descriptor is one main or linked worktree of a repository.
type Descriptor struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Hash       string `json:"hash"`
	Branch     string `json:"branch,omitempty"` // short branch name when IsBranch
	IsBranch   bool   `json:"isBranch"`
	IsTag      bool   `json:"isTag"`
	Detached   bool   `json:"detached"`
	Locked     bool   `json:"locked"`
	LockReason string `json:"lockReason,omitempty"`
	Prunable   bool   `json:"prunable"`
	Bare       bool   `json:"bare"`
	IsMain     bool   `json:"isMain"`
	Root       string `json:"root"` // main folder of the owning repository
	Ahead      *int   `json:"ahead,omitempty"`
	Behind     *int   `json:"behind,omitempty"`
	Remote     string `json:"remote,omitempty"`
	RemoteRef  string `json:"remoteRef,omitempty"`
}

// HasUpstream reports whether an upstream remote branch is known.
func (d Descriptor) HasUpstream() bool {
	return d.Remote != "" && d.RemoteRef != ""
}

// Upstream returns "remote/ref", or "" without an upstream.
func (d Descriptor) Upstream() string {
	if !d.HasUpstream() {
		return ""
	}
	return d.Remote + "/" + d.RemoteRef
}

// describeRe matches `describe --all` output naming a tag or a branch.
var describeRe = regexp.MustCompile(`^(tags|heads)/(.+)$`)

const shortHashLen = 7

// ShortHash abbreviates a commit hash.
func ShortHash(hash string) string {
	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}
	return hash
}

// fromPorcelain builds the descriptor fields that need no further git
// calls. describe is the `describe --all` output for detached worktrees.
func fromPorcelain(rec git.PorcelainRecord, mainFolder, describe string) Descriptor {
	d := Descriptor{
		Path:       strings.TrimSpace(rec["worktree"]),
		Hash:       strings.TrimSpace(rec["HEAD"]),
		Locked:     rec.Has("locked"),
		LockReason: rec["locked"],
		Prunable:   rec.Has("prunable"),
		Bare:       rec.Has("bare"),
		Root:       mainFolder,
	}
	d.IsMain = mainFolder != "" && filepath.Clean(d.Path) == filepath.Clean(strings.TrimSpace(mainFolder))

	switch {
	case rec["branch"] != "":
		d.IsBranch = true
		d.Branch = git.ShortRefName(rec["branch"])
		d.Name = d.Branch
	case d.Bare:
		d.Name = "(bare)"
	default:
		d.Detached = true
		if m := describeRe.FindStringSubmatch(strings.TrimSpace(describe)); m != nil {
			d.Name = m[2]
			d.IsTag = m[1] == "tags"
		} else {
			d.Name = ShortHash(d.Hash)
		}
	}
	return d
}

// resolveUpstream splits an upstream short name using the known remote names,
// longest match first, so remotes containing '/' resolve correctly.
func resolveUpstream(rec git.RefRecord, remotes []git.Remote) (remote, ref string) {
	if r, b := rec[git.FieldUpstreamRemote], rec[git.FieldUpstreamRef]; r != "" && b != "" {
		return r, git.ShortRefName(b)
	}
	short := rec[git.FieldUpstreamShort]
	if short == "" {
		return "", ""
	}
	best := ""
	for _, rm := range remotes {
		if strings.HasPrefix(short, rm.Name+"/") && len(rm.Name) > len(best) {
			best = rm.Name
		}
	}
	if best != "" {
		return best, strings.TrimPrefix(short, best+"/")
	}
	remote, ref, _ = git.SplitRemoteRef(short)
	return remote, ref
}
