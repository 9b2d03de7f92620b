// pattern: Imperative Shell

package workflow

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// CopyResult summarizes a CopyFiles run.
type CopyResult struct {
	Copied   []string // slash-separated paths relative to the source
	Failures []error
}

// CopyFiles copies files under src matching any include pattern and no
// exclude pattern into the same relative location under dst. Existing
// files in dst are left alone. Failures are collected, not fatal; a
// cancelled ctx stops the walk and returns ErrCancelled with what was
// copied so far.
func CopyFiles(ctx context.Context, src, dst string, include, exclude []string) (CopyResult, error) {
	var res CopyResult
	include, exclude = normalizePatterns(include), normalizePatterns(exclude)
	if len(include) == 0 {
		return res, nil
	}

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if err != nil {
			res.Failures = append(res.Failures, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		relOS, err := filepath.Rel(src, path)
		if err != nil || relOS == "." {
			return nil
		}
		rel := filepath.ToSlash(relOS)
		if d.IsDir() {
			if d.Name() == ".git" || matchesAny(exclude, rel+"/") || matchesAny(exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !matchesAny(include, rel) || matchesAny(exclude, rel) {
			return nil
		}
		target := filepath.Join(dst, relOS)
		if _, err := os.Lstat(target); err == nil {
			return nil
		}
		if err := copyFile(path, target); err != nil {
			res.Failures = append(res.Failures, err)
			return nil
		}
		res.Copied = append(res.Copied, rel)
		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

func normalizePatterns(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
