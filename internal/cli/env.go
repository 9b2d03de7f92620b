// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"wtsync/internal/cache"
	"wtsync/internal/config"
	"wtsync/internal/events"
	"wtsync/internal/folders"
	"wtsync/internal/git"
	"wtsync/internal/logging"
	"wtsync/internal/process"
	"wtsync/internal/state"
	"wtsync/internal/tui"
	"wtsync/internal/workflow"
	"wtsync/internal/worktree"
)

// LogFileName is the diagnostic log inside the data directory.
const LogFileName = "wtsync.log"

// Options are the global flags.
type Options struct {
	ConfigDir string
	DataDir   string
	Verbose   bool // mirror diagnostics to stderr
	NoInput   bool // never prompt
}

// Env is the wired object graph shared by the commands of one invocation.
type Env struct {
	Config  config.Config
	DataDir string
	Logs    *logging.Manager
	Logger  *logging.ScopedLogger
	Bus     *events.Bus
	Runner  *process.Runner
	Repo    *git.Repo
	Store   *state.Store
	Folders *folders.Registry
	Builder *worktree.Builder

	cache *cache.Service
	opts  Options

	Stdout io.Writer
	Stderr io.Writer
}

// loadConfig loads the configuration from the specified directory or default location.
func loadConfig(configDir string) (config.Config, error) {
	if configDir != "" {
		return config.LoadFromDir(configDir)
	}
	return config.Load()
}

// OpenEnv loads the configuration and wires logging, git access and state.
// workspace lists the folders that make up the workspace scope.
func OpenEnv(opts Options, workspace []string, stdout, stderr io.Writer) (*Env, error) {
	cfg, err := loadConfig(opts.ConfigDir)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: failed to load config: %v\n", err)
	}

	dataDir := config.DataDir(opts.DataDir)

	logCfg := logging.Config{
		FilePath:       filepath.Join(dataDir, LogFileName),
		MaxSizeMB:      10,
		MaxBackups:     3,
		MaxAgeDays:     7,
		ChannelBufSize: 1000,
		Level:          cfg.LogLevel,
	}
	if opts.Verbose {
		logCfg.Console = stderr
	}
	logs, err := logging.NewManager(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	bus := events.NewBus()
	runner := process.NewRunner(process.Config{Binary: cfg.GitPath, Env: cfg.ProxyEnv()}, logs.For(logging.ScopeGit))
	repo := git.New(runner, logs.For(logging.ScopeGit))

	store, err := state.Open(dataDir, workspace, bus, logs.For(logging.ScopeState))
	if err != nil {
		bus.Close()
		_ = logs.Close()
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	return &Env{
		Config:  cfg,
		DataDir: dataDir,
		Logs:    logs,
		Logger:  logs.For(logging.ScopeApp),
		Bus:     bus,
		Runner:  runner,
		Repo:    repo,
		Store:   store,
		Folders: folders.NewRegistry(store, repo, bus, logs.For(logging.ScopeState)),
		Builder: worktree.NewBuilder(repo, logs.For(logging.ScopeWorktree)),
		opts:    opts,
		Stdout:  stdout,
		Stderr:  stderr,
	}, nil
}

// Cache returns the worktree cache, creating it on first use. watcher may
// be nil; only the daemon watches repositories.
func (e *Env) Cache(watcher cache.Watcher) *cache.Service {
	if e.cache == nil {
		e.cache = cache.New(cache.Deps{
			Store:    e.Store,
			Lister:   e.Builder,
			Folders:  e.Folders,
			Resolver: e.Repo,
			Watcher:  watcher,
			Bus:      e.Bus,
			Logger:   e.Logs.For(logging.ScopeCache),
		}, cache.OptionsFromConfig(e.Config.Cache))
	}
	return e.cache
}

// Interactive reports whether prompts can be shown.
func (e *Env) Interactive() bool {
	if e.opts.NoInput {
		return false
	}
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
}

// Orchestrator wires the workflows with terminal prompts when interactive.
// Prompts render on stderr so stdout stays clean for paths and JSON.
func (e *Env) Orchestrator() *workflow.Orchestrator {
	d := workflow.Deps{
		Repo:      e.Repo,
		Shell:     e.Runner,
		Cache:     e.Cache(nil),
		Folders:   e.Folders,
		Notifier:  tui.NewNotifier(e.Stderr, e.Config.Theme),
		Opener:    pathOpener{w: e.Stdout},
		Bus:       e.Bus,
		Config:    e.Config,
		Logger:    e.Logs.For(logging.ScopeWorkflow),
		BackupDir: filepath.Join(e.DataDir, "backups"),
	}
	if e.Interactive() {
		d.Prompter = tui.NewPrompter(e.Config.Theme, tea.WithOutput(os.Stderr))
		d.Progress = tui.NewProgress(e.Config.Theme, tea.WithOutput(os.Stderr))
	}
	return workflow.New(d)
}

// Close stops background work and flushes logs.
func (e *Env) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
	e.Bus.Close()
	_ = e.Logs.Close()
}

// pathOpener "opens" a folder by printing it, so shells can cd into it.
type pathOpener struct {
	w io.Writer
}

func (o pathOpener) Open(_ context.Context, path string, _ bool) error {
	_, err := fmt.Fprintln(o.w, path)
	return err
}
