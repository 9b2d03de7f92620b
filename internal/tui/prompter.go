// pattern: Imperative Shell

package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wtsync/internal/workflow"
)

// Prompter runs each pick, input and confirmation as a short-lived
// bubbletea program on the terminal.
type Prompter struct {
	styles *Styles
	opts   []tea.ProgramOption
}

// NewPrompter creates a Prompter. opts are passed to every program, e.g.
// tea.WithInput and tea.WithOutput.
func NewPrompter(theme string, opts ...tea.ProgramOption) *Prompter {
	return &Prompter{styles: NewStyles(theme), opts: opts}
}

var _ workflow.Prompter = (*Prompter)(nil)

func (p *Prompter) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, p.opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			return nil, workflow.ErrCancelled
		}
		return nil, err
	}
	return final, nil
}

func (p *Prompter) Pick(ctx context.Context, req workflow.PickRequest) (workflow.Option, error) {
	final, err := p.run(ctx, newPickModel(req, p.styles))
	if err != nil {
		return workflow.Option{}, err
	}
	return final.(pickModel).result()
}

func (p *Prompter) Input(ctx context.Context, req workflow.InputRequest) (string, error) {
	final, err := p.run(ctx, newInputModel(req, p.styles))
	if err != nil {
		return "", err
	}
	return final.(inputModel).result()
}

func (p *Prompter) Confirm(ctx context.Context, title, message string, items []string) (bool, error) {
	final, err := p.run(ctx, newConfirmModel(title, message, items, p.styles))
	if err != nil {
		return false, err
	}
	return final.(confirmModel).result()
}

// Progress shows a spinner with the latest reported line while fn runs.
type Progress struct {
	styles *Styles
	opts   []tea.ProgramOption
}

// NewProgress creates a Progress.
func NewProgress(theme string, opts ...tea.ProgramOption) *Progress {
	return &Progress{styles: NewStyles(theme), opts: opts}
}

var _ workflow.Progress = (*Progress)(nil)

type progressLineMsg string

type progressDoneMsg struct{}

type progressModel struct {
	title       string
	cancellable bool
	styles      *Styles
	spinner     spinner.Model
	line        string
	dismissed   bool
	finished    bool
}

func newProgressModel(title string, cancellable bool, styles *Styles) progressModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = styles.AccentStyle()
	return progressModel{title: title, cancellable: cancellable, styles: styles, spinner: s}
}

func (m progressModel) Init() tea.Cmd { return m.spinner.Tick }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressLineMsg:
		m.line = string(msg)
		return m, nil
	case progressDoneMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			if m.cancellable {
				m.dismissed = true
				return m, tea.Quit
			}
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished || m.dismissed {
		return ""
	}
	line := m.spinner.View() + " " + m.styles.InfoStyle().Render(m.title)
	if m.line != "" {
		line += "  " + m.styles.MutedStyle().Render(workflow.Truncate(m.line, 60))
	}
	if m.cancellable {
		line += m.styles.MutedStyle().Render("  (esc to cancel)")
	}
	return line
}

// WithProgress implements workflow.Progress. Dismissing a cancellable
// indicator cancels fn's context and waits for fn to return.
func (p *Progress) WithProgress(ctx context.Context, title string, cancellable bool,
	fn func(ctx context.Context, report func(string)) error) error {

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newProgressModel(title, cancellable, p.styles), append([]tea.ProgramOption{tea.WithContext(ctx)}, p.opts...)...)
	result := workflow.NewCompletion[struct{}]()
	go func() {
		err := fn(runCtx, func(line string) { prog.Send(progressLineMsg(line)) })
		if err != nil {
			result.Reject(err)
		} else {
			result.Resolve(struct{}{})
		}
		prog.Send(progressDoneMsg{})
	}()

	final, runErr := prog.Run()
	if pm, ok := final.(progressModel); ok && pm.dismissed {
		cancel()
	}
	// fn owns its cleanup; wait for it even when the indicator is gone.
	_, err := result.Wait(context.Background())
	if err != nil {
		if runCtx.Err() != nil && errors.Is(err, context.Canceled) {
			return workflow.ErrCancelled
		}
		return err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return nil
}

// Notifier prints leveled, styled notifications to a writer.
type Notifier struct {
	mu     sync.Mutex
	w      io.Writer
	styles *Styles
}

// NewNotifier creates a Notifier writing to w.
func NewNotifier(w io.Writer, theme string) *Notifier {
	return &Notifier{w: w, styles: NewStyles(theme)}
}

var _ workflow.Notifier = (*Notifier)(nil)

func (n *Notifier) Notify(level workflow.Level, msg string) {
	style, icon := n.styles.LevelStyle(level)
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintln(n.w, lipgloss.JoinHorizontal(lipgloss.Top, style.Render(icon), " ", style.Render(msg)))
}
