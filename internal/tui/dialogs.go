// pattern: Imperative Shell

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wtsync/internal/workflow"
)

const (
	defaultDialogWidth  = 80
	defaultDialogHeight = 20
)

// pickModel is a filterable single-choice list.
type pickModel struct {
	req    workflow.PickRequest
	styles *Styles
	list   list.Model

	chosen workflow.Option
	err    error
	done   bool
}

func newPickModel(req workflow.PickRequest, styles *Styles) pickModel {
	l := list.New(toOptionItems(req.Options), optionDelegate{styles: styles}, defaultDialogWidth, defaultDialogHeight)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	for i, o := range req.Options {
		if req.Default != "" && o.Value == req.Default {
			l.Select(i)
			break
		}
	}
	return pickModel{req: req, styles: styles, list: l}
}

func (m pickModel) Init() tea.Cmd { return nil }

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, max(msg.Height-4, 3))
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(optionItem); ok {
				m.chosen = it.opt
				m.done = true
				return m, tea.Quit
			}
			return m, nil
		case "esc":
			if m.list.FilterState() == list.FilterApplied {
				break
			}
			return m.finish(workflow.ErrCancelled)
		case "ctrl+c":
			return m.finish(workflow.ErrCancelled)
		case "shift+tab":
			if m.req.AllowBack {
				return m.finish(workflow.ErrBack)
			}
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) finish(err error) (tea.Model, tea.Cmd) {
	m.err = err
	m.done = true
	return m, tea.Quit
}

func (m pickModel) View() string {
	if m.done {
		return ""
	}
	parts := []string{m.styles.TitleStyle().Render(m.req.Title)}
	if m.req.Placeholder != "" && m.list.FilterState() == list.Unfiltered {
		parts = append(parts, m.styles.SubtitleStyle().Render("/ to filter "+m.req.Placeholder))
	}
	parts = append(parts, m.list.View(), m.styles.HelpStyle().Render(m.help()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m pickModel) help() string {
	h := "enter select · / filter · esc cancel"
	if m.req.AllowBack {
		h += " · shift+tab back"
	}
	return h
}

func (m pickModel) result() (workflow.Option, error) {
	if m.err != nil {
		return workflow.Option{}, m.err
	}
	if !m.done {
		return workflow.Option{}, workflow.ErrCancelled
	}
	return m.chosen, nil
}

// inputModel is a single-line text prompt with inline validation.
type inputModel struct {
	req    workflow.InputRequest
	styles *Styles
	input  textinput.Model

	problem string
	value   string
	err     error
	done    bool
}

func newInputModel(req workflow.InputRequest, styles *Styles) inputModel {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.SetValue(req.Value)
	ti.CursorEnd()
	ti.Width = defaultDialogWidth
	ti.Focus()
	m := inputModel{req: req, styles: styles, input: ti}
	m.problem = m.validate()
	return m
}

func (m inputModel) validate() string {
	if m.req.Validate == nil {
		return ""
	}
	return m.req.Validate(m.input.Value())
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.Width = max(msg.Width-4, 10)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if m.problem = m.validate(); m.problem != "" {
				return m, nil
			}
			m.value = m.input.Value()
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.err, m.done = workflow.ErrCancelled, true
			return m, tea.Quit
		case "shift+tab":
			if m.req.AllowBack {
				m.err, m.done = workflow.ErrBack, true
				return m, tea.Quit
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.problem = m.validate()
	return m, cmd
}

func (m inputModel) View() string {
	if m.done {
		return ""
	}
	parts := []string{m.styles.TitleStyle().Render(m.req.Title)}
	if m.req.Prompt != "" {
		parts = append(parts, m.styles.SubtitleStyle().Render(m.req.Prompt))
	}
	parts = append(parts, m.input.View())
	if m.problem != "" {
		parts = append(parts, m.styles.ErrorStyle().Render(m.problem))
	}
	help := "enter confirm · esc cancel"
	if m.req.AllowBack {
		help += " · shift+tab back"
	}
	parts = append(parts, m.styles.HelpStyle().Render(help))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m inputModel) result() (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if !m.done {
		return "", workflow.ErrCancelled
	}
	return strings.TrimSpace(m.value), nil
}

// confirmModel is a yes/no question with an optional item list.
type confirmModel struct {
	title   string
	message string
	items   []string
	styles  *Styles

	yes  bool // current selection
	ok   bool
	err  error
	done bool
}

// maxConfirmItems caps the rows shown under a confirmation.
const maxConfirmItems = 15

func newConfirmModel(title, message string, items []string, styles *Styles) confirmModel {
	return confirmModel{title: title, message: message, items: items, styles: styles}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.ok, m.done = true, true
		return m, tea.Quit
	case "n", "N":
		m.done = true
		return m, tea.Quit
	case "left", "right", "tab", "h", "l":
		m.yes = !m.yes
	case "enter":
		m.ok, m.done = m.yes, true
		return m, tea.Quit
	case "esc", "ctrl+c":
		m.err, m.done = workflow.ErrCancelled, true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	parts := []string{m.styles.TitleStyle().Render(m.title), m.styles.InfoStyle().Render(m.message)}
	if len(m.items) > 0 {
		shown := m.items[:min(len(m.items), maxConfirmItems)]
		lines := make([]string, len(shown))
		for i, it := range shown {
			lines[i] = "  " + it
		}
		if extra := len(m.items) - len(shown); extra > 0 {
			lines = append(lines, m.styles.MutedStyle().Render("  … and more"))
		}
		parts = append(parts, m.styles.BoxStyle().Render(strings.Join(lines, "\n")))
	}
	yes, no := "  Yes  ", "  No  "
	if m.yes {
		yes = m.styles.SelectedStyle().Reverse(true).Render(yes)
		no = m.styles.MutedStyle().Render(no)
	} else {
		yes = m.styles.MutedStyle().Render(yes)
		no = m.styles.SelectedStyle().Reverse(true).Render(no)
	}
	parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Top, yes, " ", no),
		m.styles.HelpStyle().Render("y/n · ←/→ choose · enter confirm · esc cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m confirmModel) result() (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.ok, nil
}
