// pattern: Imperative Shell

package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"wtsync/internal/cache"
	"wtsync/internal/workflow"
)

// worktreeItem wraps a cached worktree for display in a list.
type worktreeItem struct {
	item cache.Item
}

func (i worktreeItem) Title() string { return i.item.Name }

// Description summarizes branch state: upstream, divergence and flags.
func (i worktreeItem) Description() string {
	var parts []string
	if i.item.HasUpstream() {
		parts = append(parts, "⇄ "+i.item.Upstream())
	}
	if i.item.Ahead != nil && i.item.Behind != nil {
		parts = append(parts, fmt.Sprintf("↑%d ↓%d", *i.item.Ahead, *i.item.Behind))
	}
	if i.item.Locked {
		parts = append(parts, "locked")
	}
	if i.item.Prunable {
		parts = append(parts, "prunable")
	}
	parts = append(parts, i.item.Path)
	return strings.Join(parts, " · ")
}

func (i worktreeItem) FilterValue() string {
	return i.item.Label + " " + i.item.Name + " " + i.item.Path
}

// worktreeDelegate renders worktree items, prefixing the first item of each
// repository with its label.
type worktreeDelegate struct {
	styles *Styles
}

func newWorktreeDelegate(styles *Styles) worktreeDelegate {
	return worktreeDelegate{styles: styles}
}

func (d worktreeDelegate) Height() int { return 2 }
func (d worktreeDelegate) Spacing() int { return 0 }
func (d worktreeDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d worktreeDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	wi, ok := item.(worktreeItem)
	if !ok {
		return
	}
	selected := index == m.Index()

	titleStyle := d.styles.InfoStyle()
	descStyle := d.styles.MutedStyle()
	indicator := "  "
	if selected {
		titleStyle = d.styles.SelectedStyle()
		indicator = d.styles.SelectedStyle().Render("▸ ")
	}

	bullet, bulletStyle := "●", d.styles.SuccessStyle()
	switch {
	case wi.item.IsMain:
		bullet, bulletStyle = "◆", d.styles.GroupStyle()
	case wi.item.Prunable:
		bullet, bulletStyle = "✗", d.styles.ErrorStyle()
	case wi.item.Locked:
		bullet, bulletStyle = "■", d.styles.WarnStyle()
	case wi.item.Detached:
		bullet, bulletStyle = "○", d.styles.WarnStyle()
	}

	width := max(m.Width()-4, 10)
	title := titleStyle.Render(ansi.Truncate(wi.item.Name, width, "…"))
	if wi.item.Label != "" {
		title = d.styles.GroupStyle().Render(wi.item.Label) + d.styles.MutedStyle().Render(" / ") + title
	}
	desc := descStyle.Render(ansi.Truncate(wi.Description(), width, "…"))
	_, _ = fmt.Fprintf(w, "%s%s %s\n    %s", indicator, bulletStyle.Render(bullet), title, desc)
}

func toWorktreeItems(items []cache.Item) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = worktreeItem{item: it}
	}
	return out
}

// optionItem wraps a pick option.
type optionItem struct {
	opt workflow.Option
}

func (i optionItem) FilterValue() string { return i.opt.Label + " " + i.opt.Description }

type optionDelegate struct {
	styles *Styles
}

func (d optionDelegate) Height() int { return 1 }
func (d optionDelegate) Spacing() int { return 0 }
func (d optionDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d optionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	oi, ok := item.(optionItem)
	if !ok {
		return
	}
	label := d.styles.InfoStyle().Render(oi.opt.Label)
	indicator := "  "
	if index == m.Index() {
		label = d.styles.SelectedStyle().Render(oi.opt.Label)
		indicator = d.styles.SelectedStyle().Render("▸ ")
	}
	line := indicator + label
	if oi.opt.Description != "" {
		line += "  " + d.styles.MutedStyle().Render(oi.opt.Description)
	}
	_, _ = io.WriteString(w, ansi.Truncate(line, max(m.Width(), 20), "…"))
}

func toOptionItems(opts []workflow.Option) []list.Item {
	out := make([]list.Item, len(opts))
	for i, o := range opts {
		out[i] = optionItem{opt: o}
	}
	return out
}
