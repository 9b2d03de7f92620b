package workflow

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"wtsync/internal/cache"
	"wtsync/internal/config"
	"wtsync/internal/events"
	"wtsync/internal/git"
	"wtsync/internal/git/gittest"
	"wtsync/internal/logging"
	"wtsync/internal/process"
)

type pickAnswer struct {
	value string
	err   error
}

type inputAnswer struct {
	value string
	err   error
}

type confirmAnswer struct {
	ok  bool
	err error
}

// fakePrompter answers from queues and records every request. An empty
// queue answers with ErrCancelled.
type fakePrompter struct {
	mu       sync.Mutex
	picks    []pickAnswer
	inputs   []inputAnswer
	confirms []confirmAnswer

	pickReqs    []PickRequest
	inputReqs   []InputRequest
	confirmMsgs []string
	confirmList [][]string
}

func (p *fakePrompter) Pick(_ context.Context, req PickRequest) (Option, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pickReqs = append(p.pickReqs, req)
	if len(p.picks) == 0 {
		return Option{}, ErrCancelled
	}
	a := p.picks[0]
	p.picks = p.picks[1:]
	if a.err != nil {
		return Option{}, a.err
	}
	for _, o := range req.Options {
		if o.Value == a.value {
			return o, nil
		}
	}
	return Option{Label: a.value, Value: a.value}, nil
}

func (p *fakePrompter) Input(_ context.Context, req InputRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputReqs = append(p.inputReqs, req)
	if len(p.inputs) == 0 {
		return "", ErrCancelled
	}
	a := p.inputs[0]
	p.inputs = p.inputs[1:]
	return a.value, a.err
}

func (p *fakePrompter) Confirm(_ context.Context, _ string, message string, items []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmMsgs = append(p.confirmMsgs, message)
	p.confirmList = append(p.confirmList, items)
	if len(p.confirms) == 0 {
		return false, ErrCancelled
	}
	a := p.confirms[0]
	p.confirms = p.confirms[1:]
	return a.ok, a.err
}

type note struct {
	level Level
	msg   string
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *fakeNotifier) Notify(level Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{level, msg})
}

func (n *fakeNotifier) at(level Level) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, x := range n.notes {
		if x.level == level {
			out = append(out, x.msg)
		}
	}
	return out
}

// fakeProgress runs fn unless the title contains cancelOn, in which case it
// behaves as if the user dismissed the indicator before fn ran.
type fakeProgress struct {
	mu       sync.Mutex
	titles   []string
	cancelOn string
}

func (p *fakeProgress) WithProgress(ctx context.Context, title string, cancellable bool, fn func(context.Context, func(string)) error) error {
	p.mu.Lock()
	p.titles = append(p.titles, title)
	p.mu.Unlock()
	if cancellable && p.cancelOn != "" && strings.Contains(title, p.cancelOn) {
		return ErrCancelled
	}
	return fn(ctx, func(string) {})
}

type fakeOpener struct {
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, path string, _ bool) error {
	o.opened = append(o.opened, path)
	return nil
}

type fakeShell struct {
	commands []string
}

func (s *fakeShell) RunShell(_ context.Context, dir, command string, onLine func(process.Line)) (process.Result, error) {
	s.commands = append(s.commands, dir+": "+command)
	if onLine != nil {
		onLine(process.Line{Stream: process.Stdout, Text: "ok"})
	}
	return process.Result{Stdout: "ok\n"}, nil
}

type invalidation struct {
	scope cache.Scope
	root  string
}

type fakeCache struct {
	mu          sync.Mutex
	refs        map[string][]git.RefRecord
	stored      map[string][]git.RefRecord
	invalidated []invalidation
}

func newFakeCache() *fakeCache {
	return &fakeCache{refs: map[string][]git.RefRecord{}, stored: map[string][]git.RefRecord{}}
}

func (c *fakeCache) RefList(main string) ([]git.RefRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	refs, ok := c.refs[main]
	return refs, ok
}

func (c *fakeCache) StoreRefList(main string, refs []git.RefRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored[main] = refs
	return nil
}

func (c *fakeCache) Invalidate(scope cache.Scope, root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, invalidation{scope, root})
}

type harness struct {
	main     string
	runner   *gittest.FakeRunner
	prompt   *fakePrompter
	notify   *fakeNotifier
	progress *fakeProgress
	opener   *fakeOpener
	shell    *fakeShell
	cache    *fakeCache
	bus      *events.Bus
	cfg      config.Config
	backup   string
}

// newHarness scripts a repository whose main folder is a temp dir.
func newHarness(t *testing.T) *harness {
	t.Helper()
	main := filepath.Join(t.TempDir(), "repo")
	runner := gittest.NewFakeRunner()
	runner.On("rev-parse --path-format=absolute --git-common-dir", gittest.Response{Stdout: filepath.Join(main, ".git") + "\n"})
	h := &harness{
		main:     main,
		runner:   runner,
		prompt:   &fakePrompter{},
		notify:   &fakeNotifier{},
		progress: &fakeProgress{},
		opener:   &fakeOpener{},
		shell:    &fakeShell{},
		cache:    newFakeCache(),
		bus:      events.NewBus(),
		cfg:      config.DefaultConfig(),
	}
	t.Cleanup(h.bus.Close)
	return h
}

func (h *harness) orchestrator() *Orchestrator {
	return New(Deps{
		Repo:      git.New(h.runner, logging.NopLogger()),
		Shell:     h.shell,
		Cache:     h.cache,
		Prompter:  h.prompt,
		Notifier:  h.notify,
		Progress:  h.progress,
		Opener:    h.opener,
		Bus:       h.bus,
		Config:    h.cfg,
		Logger:    logging.NopLogger(),
		BackupDir: h.backup,
	})
}

func refLine(fields []string, values map[string]string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + `="` + values[f] + `"`
	}
	return strings.Join(parts, " ")
}

func listRefsKey(kinds string, fields []string) string {
	return "for-each-ref --sort=-committerdate --sort=-refname --sort=-upstream --format=" + git.RefFormat(fields) + " " + kinds
}
