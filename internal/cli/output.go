// pattern: Imperative Shell
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"wtsync/internal/cache"
	"wtsync/internal/worktree"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// WriteJSON encodes v to w. On a terminal the output is indented for
// readability; otherwise it is one compact line.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if isTerminal(w) {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// RefText is the branch, tag or abbreviated commit a worktree is on.
func RefText(d worktree.Descriptor) string {
	switch {
	case d.Bare:
		return "(bare)"
	case d.IsBranch && d.Branch != "":
		return d.Branch
	case d.Name != "" && d.IsTag:
		return d.Name
	default:
		return worktree.ShortHash(d.Hash)
	}
}

// StateText summarizes the flags and upstream divergence of a worktree.
func StateText(d worktree.Descriptor) string {
	var parts []string
	if d.IsMain {
		parts = append(parts, "main")
	}
	if d.Detached {
		parts = append(parts, "detached")
	}
	if d.Locked {
		parts = append(parts, "locked")
	}
	if d.Prunable {
		parts = append(parts, "prunable")
	}
	if d.Ahead != nil && d.Behind != nil {
		parts = append(parts, fmt.Sprintf("↑%d ↓%d", *d.Ahead, *d.Behind))
	}
	return strings.Join(parts, " ")
}

// WriteTable prints items as aligned columns.
func WriteTable(w io.Writer, items []cache.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No worktrees. Register a repository with `wtsync folders add <path>`.")
		return err
	}

	header := lipgloss.NewStyle().Bold(true)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers("REPO", "WORKTREE", "REF", "STATE", "PATH").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header.PaddingRight(1)
			}
			return lipgloss.NewStyle().PaddingRight(1)
		})
	for _, it := range items {
		t.Row(it.Label, it.Name, RefText(it.Descriptor), StateText(it.Descriptor), it.Path)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
