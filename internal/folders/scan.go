// pattern: Imperative Shell

package folders

import (
	"os"
	"path/filepath"
	"slices"

	"wtsync/internal/worktree"
)

// Candidate is a repository found by Scan.
type Candidate struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Registered bool   `json:"registered"`
}

// Scan looks one level below each path for repository main folders, that
// is directories holding a .git directory. Linked worktrees (a .git file)
// and bare repositories are skipped. Symlinked duplicates are reported once,
// under their resolved path.
func Scan(paths []string) []Candidate {
	var found []Candidate
	seen := make(map[string]bool)

	for _, scanPath := range paths {
		entries, err := os.ReadDir(scanPath)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
				continue
			}
			dir := filepath.Join(scanPath, entry.Name())

			resolved, err := filepath.EvalSymlinks(dir)
			if err != nil {
				resolved = dir
			}
			key := worktree.NormalizePath(resolved)
			if seen[key] {
				continue
			}
			seen[key] = true

			if !isMainFolder(resolved) {
				continue
			}
			found = append(found, Candidate{Name: entry.Name(), Path: resolved})
		}
	}
	return found
}

func isMainFolder(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

// MarkRegistered sets Registered on the candidates already in the list.
func (r *Registry) MarkRegistered(found []Candidate) ([]Candidate, error) {
	list, err := r.List()
	if err != nil {
		return nil, err
	}
	out := slices.Clone(found)
	for i := range out {
		out[i].Registered = indexOf(list, out[i].Path) >= 0
	}
	return out, nil
}
