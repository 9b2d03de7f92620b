// pattern: Imperative Shell

package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"wtsync/internal/cache"
	"wtsync/internal/events"
	"wtsync/internal/worktree"
)

// snapshotMsg carries a snapshot update for scope.
type snapshotMsg struct {
	scope cache.Scope
}

type refreshedMsg struct {
	scope cache.Scope
	err   error
}

type detailMsg struct {
	path string
	desc worktree.Descriptor
}

// eventsClosedMsg means the bus went away; the browser stops listening.
type eventsClosedMsg struct{}

func (m Model) waitForEvent() tea.Cmd {
	if m.sub == nil {
		return nil
	}
	ch := m.sub.C()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		if cu, ok := ev.(events.CacheUpdated); ok {
			return snapshotMsg{scope: cache.Scope(cu.Scope)}
		}
		return snapshotMsg{}
	}
}

func (m Model) refresh() tea.Cmd {
	scope, src := m.scope, m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		return refreshedMsg{scope: scope, err: src.Refresh(ctx, scope)}
	}
}

func (m Model) loadDetail(it cache.Item) tea.Cmd {
	if m.enrich == nil {
		return func() tea.Msg { return detailMsg{path: it.Path, desc: it.Descriptor} }
	}
	enrich := m.enrich
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		out := enrich.Enrich(ctx, []worktree.Descriptor{it.Descriptor})
		return detailMsg{path: it.Path, desc: out[0]}
	}
}

func (m *Model) setStatus(level StatusLevel, msg string) {
	m.statusLevel = level
	m.status = msg
}

func (m *Model) reload() tea.Cmd {
	return m.list.SetItems(toWorktreeItems(m.src.Get(m.scope)))
}

func (m *Model) resize() {
	layout := ComputeLayout(m.width, m.height, m.detailOpen)
	m.list.SetSize(layout.List.Width, layout.ListHeight())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case snapshotMsg:
		var cmd tea.Cmd
		if msg.scope == "" || msg.scope == m.scope {
			cmd = m.reload()
		}
		return m, tea.Batch(cmd, m.waitForEvent())

	case eventsClosedMsg:
		return m, nil

	case refreshedMsg:
		if msg.err != nil {
			m.setStatus(StatusError, "refresh failed: "+msg.err.Error())
			return m, nil
		}
		cmd := m.reload()
		m.setStatus(StatusSuccess, fmt.Sprintf("%d worktree(s)", len(m.list.Items())))
		return m, cmd

	case detailMsg:
		if it, ok := m.selected(); ok && it.Path == msg.path {
			d := msg.desc
			m.detail = &d
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.statusSpinner, cmd = m.statusSpinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		if m.list.FilterState() == list.FilterApplied {
			break
		}
		if m.detailOpen {
			m.detailOpen = false
			m.resize()
			return m, nil
		}
		return m, tea.Quit
	case "enter":
		if it, ok := m.selected(); ok {
			m.chosen = &it
			return m, tea.Quit
		}
		return m, nil
	case "tab":
		if m.scope == cache.Global {
			m.scope = cache.Workspace
		} else {
			m.scope = cache.Global
		}
		m.detail = nil
		cmd := m.reload()
		m.setStatus(StatusInfo, "showing "+string(m.scope)+" worktrees")
		return m, cmd
	case "r":
		m.setStatus(StatusLoading, "refreshing "+string(m.scope)+" worktrees")
		return m, m.refresh()
	case "d":
		m.detailOpen = !m.detailOpen
		m.resize()
		if !m.detailOpen {
			return m, nil
		}
		return m, m.selectDetail()
	}

	prev, _ := m.selected()
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	if cur, ok := m.selected(); m.detailOpen && ok && cur.Path != prev.Path {
		return m, tea.Batch(cmd, m.selectDetail())
	}
	return m, cmd
}

func (m *Model) selectDetail() tea.Cmd {
	it, ok := m.selected()
	if !ok {
		m.detail = nil
		return nil
	}
	if m.detailPath == it.Path && m.detail != nil {
		return nil
	}
	m.detailPath = it.Path
	m.detail = nil
	return m.loadDetail(it)
}
