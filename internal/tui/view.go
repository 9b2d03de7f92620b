// pattern: Imperative Shell

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"wtsync/internal/cache"
	"wtsync/internal/worktree"
)

// View renders the browser.
func (m Model) View() string {
	layout := ComputeLayout(m.width, m.height, m.detailOpen)

	header := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.SelectedStyle().Render("wtsync"),
		m.renderScopes(),
	)

	content := m.renderList(layout)
	if m.detailOpen {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, m.renderDetail(layout))
	}

	status := lipgloss.NewStyle().Width(layout.StatusBar.Width).Render(m.renderStatusBar(layout.StatusBar.Width))
	return lipgloss.JoinVertical(lipgloss.Left, header, content, status)
}

func (m Model) renderScopes() string {
	var tabs []string
	for _, sc := range cache.Scopes {
		label := " " + string(sc) + " "
		if sc == m.scope {
			tabs = append(tabs, m.styles.SelectedStyle().Underline(true).Render(label))
		} else {
			tabs = append(tabs, m.styles.MutedStyle().Render(label))
		}
	}
	return strings.Join(tabs, " ")
}

func (m Model) renderList(layout Layout) string {
	if len(m.list.Items()) == 0 {
		msg := "No worktrees. Register a repository with `wtsync folders add <path>`."
		if m.scope == cache.Workspace {
			msg = "No workspace folders are open."
		}
		return lipgloss.NewStyle().Width(layout.List.Width).Height(layout.List.Height).
			Render(m.styles.MutedStyle().Render(msg))
	}
	return lipgloss.NewStyle().Width(layout.List.Width).Height(layout.List.Height).Render(m.list.View())
}

func (m Model) renderDetail(layout Layout) string {
	box := m.styles.BoxStyle().
		Width(max(layout.Detail.Width-2, 10)).
		Height(max(layout.Detail.Height-2, 1))

	it, ok := m.selected()
	if !ok {
		return box.Render(m.styles.MutedStyle().Render("Nothing selected"))
	}
	d := it.Descriptor
	loading := m.detail == nil
	if !loading {
		d = *m.detail
	}

	width := max(layout.Detail.Width-6, 10)
	row := func(k, v string) string {
		return m.styles.MutedStyle().Render(fmt.Sprintf("%-10s", k)) + ansi.Truncate(v, width-10, "…")
	}
	kind := "branch"
	switch {
	case d.Bare:
		kind = "bare"
	case d.IsTag:
		kind = "tag (detached)"
	case d.Detached:
		kind = "detached"
	}
	lines := []string{
		m.styles.SelectedStyle().Render(d.Name),
		"",
		row("repo", it.Label),
		row("path", d.Path),
		row("kind", kind),
		row("commit", worktree.ShortHash(d.Hash)),
	}
	if d.IsMain {
		lines = append(lines, row("main", "yes"))
	}
	if d.Locked {
		reason := d.LockReason
		if reason == "" {
			reason = "yes"
		}
		lines = append(lines, row("locked", reason))
	}
	if d.Prunable {
		lines = append(lines, m.styles.ErrorStyle().Render("prunable"))
	}
	switch {
	case loading && d.IsBranch:
		lines = append(lines, row("upstream", m.statusSpinner.View()+" loading"))
	case d.HasUpstream():
		lines = append(lines, row("upstream", d.Upstream()))
		if d.Ahead != nil && d.Behind != nil {
			lines = append(lines, row("ahead", fmt.Sprint(*d.Ahead)), row("behind", fmt.Sprint(*d.Behind)))
		}
	case d.IsBranch:
		lines = append(lines, row("upstream", "none"))
	}
	return box.Render(strings.Join(lines, "\n"))
}

// renderStatusBar renders the status message and key help.
func (m Model) renderStatusBar(width int) string {
	var icon string
	style := m.styles.InfoStyle()
	switch m.statusLevel {
	case StatusLoading:
		icon = m.statusSpinner.View() + " "
	case StatusSuccess:
		style = m.styles.SuccessStyle()
		icon = style.Render("✓") + " "
	case StatusError:
		style = m.styles.ErrorStyle()
		icon = style.Render("✗") + " "
	}
	help := m.styles.MutedStyle().Render("enter open · tab scope · r refresh · d details · / filter · q quit")
	if m.status == "" {
		return help
	}
	msg := icon + style.Render(m.status)
	gap := width - ansi.StringWidth(msg) - ansi.StringWidth(help)
	if gap < 2 {
		return msg
	}
	return msg + strings.Repeat(" ", gap) + help
}
