// Package tui renders the worktree browser and the interactive prompts used
// by workflows.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"wtsync/internal/cache"
	"wtsync/internal/events"
	"wtsync/internal/worktree"
)

// Source provides cached worktree snapshots.
type Source interface {
	Get(scope cache.Scope) []cache.Item
	Refresh(ctx context.Context, scope cache.Scope) error
}

// Enricher attaches upstream and divergence details on demand.
type Enricher interface {
	Enrich(ctx context.Context, list []worktree.Descriptor) []worktree.Descriptor
}

// StatusLevel classifies the status bar message.
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusSuccess
	StatusError
	StatusLoading
)

func (l StatusLevel) String() string {
	switch l {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusLoading:
		return "loading"
	default:
		return "info"
	}
}

const refreshTimeout = 30 * time.Second

// Model is the worktree browser state.
type Model struct {
	width  int
	height int
	styles *Styles

	src    Source
	enrich Enricher
	sub    *events.Subscription

	scope cache.Scope
	list  list.Model

	detailOpen bool
	detail     *worktree.Descriptor
	detailPath string

	status        string
	statusLevel   StatusLevel
	statusSpinner spinner.Model

	chosen *cache.Item
}

// NewModel creates a browser over src showing scope. bus may be nil; when
// set, snapshot updates reload the list.
func NewModel(src Source, enrich Enricher, bus *events.Bus, theme string, scope cache.Scope) Model {
	styles := NewStyles(theme)
	l := list.New(nil, newWorktreeDelegate(styles), 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = styles.AccentStyle()

	m := Model{
		styles:        styles,
		src:           src,
		enrich:        enrich,
		scope:         scope,
		list:          l,
		statusSpinner: s,
	}
	if bus != nil {
		m.sub = bus.Subscribe(events.DefaultBufSize, events.KindCacheUpdated)
	}
	m.list.SetItems(toWorktreeItems(src.Get(scope)))
	return m
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.statusSpinner.Tick)
}

// Chosen returns the worktree picked with enter, if any.
func (m Model) Chosen() (cache.Item, bool) {
	if m.chosen == nil {
		return cache.Item{}, false
	}
	return *m.chosen, true
}

// Scope returns the scope currently shown.
func (m Model) Scope() cache.Scope { return m.scope }

// Items returns the worktrees currently listed, in display order.
func (m Model) Items() []cache.Item {
	listed := m.list.Items()
	out := make([]cache.Item, 0, len(listed))
	for _, li := range listed {
		if it, ok := li.(worktreeItem); ok {
			out = append(out, it.item)
		}
	}
	return out
}

// Close releases the event subscription.
func (m Model) Close() {
	if m.sub != nil {
		m.sub.Close()
	}
}

func (m Model) selected() (cache.Item, bool) {
	it, ok := m.list.SelectedItem().(worktreeItem)
	if !ok {
		return cache.Item{}, false
	}
	return it.item, true
}

// Run shows the browser until the user quits or picks a worktree.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) (cache.Item, bool, error) {
	defer m.Close()
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return cache.Item{}, false, err
	}
	it, ok := final.(Model).Chosen()
	return it, ok, nil
}
