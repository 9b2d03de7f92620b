// pattern: Functional Core

package worktree

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// validNameRe matches worktree directory names: alphanumeric first, then
// alphanumerics, dots, underscores, hyphens and slashes.
var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

// ValidateName checks a worktree directory name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("worktree name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("worktree name too long (max 100 characters)")
	}
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("invalid worktree name %q: must start with alphanumeric, may contain a-z A-Z 0-9 . _ / -", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("worktree name cannot contain '..'")
	}
	return nil
}

// ValidateBranchName applies the local subset of git's ref rules so most
// mistakes are reported before git runs. git check-ref-format has the last
// word.
func ValidateBranchName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("branch name cannot be empty")
	case name == "@" || name == "HEAD":
		return fmt.Errorf("%q is not a valid branch name", name)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("branch name cannot start with '-'")
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fmt.Errorf("branch name cannot start or end with '/'")
	case strings.HasSuffix(name, ".") || strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("branch name cannot end with '.' or '.lock'")
	case strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{"):
		return fmt.Errorf("branch name cannot contain '..', '//' or '@{'")
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(`~^:?*[\`, r) {
			return fmt.Errorf("branch name cannot contain %q", r)
		}
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return fmt.Errorf("branch name components cannot start with '.'")
		}
	}
	return nil
}

// DirName turns a branch name into a directory leaf ("feat/x" -> "feat-x").
func DirName(branch string) string {
	branch = strings.TrimPrefix(branch, "refs/heads/")
	branch = strings.TrimPrefix(branch, "refs/remotes/")
	return strings.NewReplacer("/", "-", `\`, "-", ":", "-").Replace(branch)
}

// TargetDir returns where a worktree named name goes under parent.
func TargetDir(parent, name string) string {
	return filepath.Join(parent, name)
}

// NormalizePath canonicalizes p for comparison: forward slashes, lower
// case, cleaned, no trailing separator.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.ToLower(path.Clean(p))
}

// ComparePath reports whether a and b name the same location, ignoring case,
// separator style and trailing separators.
func ComparePath(a, b string) bool {
	return NormalizePath(a) == NormalizePath(b)
}

// IsWithin reports whether p is root or below it.
func IsWithin(p, root string) bool {
	np, nr := NormalizePath(p), NormalizePath(root)
	if np == "" || nr == "" {
		return false
	}
	return np == nr || strings.HasPrefix(np, strings.TrimSuffix(nr, "/")+"/")
}
