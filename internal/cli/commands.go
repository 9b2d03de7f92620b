// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"wtsync/internal/cache"
	"wtsync/internal/config"
	"wtsync/internal/instance"
	"wtsync/internal/tui"
	"wtsync/internal/worktree"
)

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(version string, opts Options) *App {
	return buildApp(version, opts, instance.Discover)
}

func buildApp(version string, opts Options, discover func(string) (string, error)) *App {
	app := NewApp(version)
	b := &builder{app: app, opts: opts, discover: discover}

	app.AddCommand(&Command{
		Name:    "list",
		Summary: "List the worktrees of registered repositories",
		Usage:   "Usage: wtsync list [--scope global|workspace] [--workspace <dir>]... [--json] [--cached] [--remote] [--local]",
		Run:     b.runList,
	})

	app.AddCommand(&Command{
		Name:    "browse",
		Summary: "Browse worktrees interactively and print the chosen path",
		Usage:   "Usage: wtsync browse [--scope global|workspace] [--workspace <dir>]...",
		Run:     b.runBrowse,
	})
	app.Default = "browse"

	app.AddCommand(&Command{
		Name:    "refresh",
		Summary: "Rebuild the worktree cache (through the daemon when it runs)",
		Usage:   "Usage: wtsync refresh [--scope global|workspace] [--workspace <dir>]...",
		Run:     b.runRefresh,
	})

	app.AddCommand(&Command{
		Name:    "serve",
		Summary: "Run the daemon: watch repositories and serve the API",
		Usage:   "Usage: wtsync serve [--bind <addr>] [--port <n>] [--workspace <dir>]...",
		Run:     b.runServe,
	})

	app.AddCommand(&Command{
		Name:           "events",
		Summary:        "Stream daemon events as JSON lines",
		Usage:          "Usage: wtsync events [--kinds <kind,...>]",
		RequiresDaemon: true,
		Run:            b.runEvents,
	})

	app.AddCommand(&Command{
		Name:    "logs",
		Summary: "Show the diagnostic log",
		Usage:   "Usage: wtsync logs [-n <lines>] [-f] [--scope <prefix>] [--level <level>]",
		Run:     b.runLogs,
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: wtsync version",
		Run: func(_ context.Context, _ []string) error {
			_, err := fmt.Fprintln(app.Stdout, version)
			return err
		},
	})

	registerCheckoutCommand(b)
	registerRemoteCommands(b)
	registerWorktreeCommands(b, app.AddGroup("worktree", "Create, remove and maintain worktrees"))
	registerBranchCommands(b, app.AddGroup("branch", "Rename and delete branches"))
	registerFolderCommands(b, app.AddGroup("folders", "Manage registered repositories, favorites and recents"))

	return app
}

// builder carries what command handlers share.
type builder struct {
	app  *App
	opts Options

	discover func(dataDir string) (string, error)
}

func (b *builder) withEnv(workspace []string, fn func(*Env) error) error {
	env, err := OpenEnv(b.opts, workspace, b.app.Stdout, b.app.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}

func (b *builder) dataDir() string {
	return config.DataDir(b.opts.DataDir)
}

func (b *builder) delegate() *Delegate {
	return &Delegate{DataDir: b.dataDir(), Discover: b.discover}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	return nil
}

// workspaceFlag registers --workspace; the current directory is used when
// the flag is absent.
func workspaceFlag(fs *flag.FlagSet) func() []string {
	dirs := fs.StringArrayP("workspace", "w", nil, "workspace folder (repeatable, default: current directory)")
	return func() []string {
		if len(*dirs) > 0 {
			return *dirs
		}
		if wd, err := os.Getwd(); err == nil {
			return []string{wd}
		}
		return nil
	}
}

func scopeFlag(fs *flag.FlagSet) func() (cache.Scope, error) {
	s := fs.StringP("scope", "s", "global", "cache scope: global or workspace")
	return func() (cache.Scope, error) {
		scope, err := cache.ParseScope(*s)
		if err != nil {
			return "", usagef("%v", err)
		}
		return scope, nil
	}
}

func (b *builder) runList(ctx context.Context, args []string) error {
	fs := newFlags("list")
	scopeOf := scopeFlag(fs)
	workspace := workspaceFlag(fs)
	asJSON := fs.Bool("json", false, "print JSON")
	cached := fs.Bool("cached", false, "print the persisted snapshot without rebuilding")
	remote := fs.Bool("remote", false, "include upstream and ahead/behind counts")
	local := fs.Bool("local", false, "do not ask a running daemon")
	if err := parse(fs, args); err != nil {
		return err
	}
	scope, err := scopeOf()
	if err != nil {
		return err
	}

	return b.withEnv(workspace(), func(env *Env) error {
		var items []cache.Item
		fromDaemon := false
		if !*local {
			if client, _, err := b.delegate().Client(); err == nil {
				if scope == cache.Workspace && fs.Changed("workspace") {
					if _, err := client.SetWorkspace(workspace()); err != nil {
						return err
					}
					if _, err := client.Refresh(scope); err != nil {
						return err
					}
				}
				if items, err = client.Worktrees(scope); err != nil {
					return err
				}
				fromDaemon = true
			}
		}

		if !fromDaemon {
			svc := env.Cache(nil)
			if scope == cache.Workspace {
				if err := svc.SetWorkspaceFolders(ctx, workspace()); err != nil {
					return err
				}
			}
			if !*cached {
				if err := svc.Refresh(ctx, scope); err != nil {
					return err
				}
			}
			items = svc.Get(scope)
		}

		if *remote {
			items = enrichItems(ctx, env.Builder, items)
		}
		if *asJSON {
			return WriteJSON(env.Stdout, items)
		}
		return WriteTable(env.Stdout, items)
	})
}

// enrichItems adds upstream and ahead/behind counts to a copy of items.
func enrichItems(ctx context.Context, b *worktree.Builder, items []cache.Item) []cache.Item {
	ds := make([]worktree.Descriptor, len(items))
	for i, it := range items {
		ds[i] = it.Descriptor
	}
	ds = b.Enrich(ctx, ds)
	out := make([]cache.Item, len(items))
	for i, it := range items {
		out[i] = cache.Item{Descriptor: ds[i], Label: it.Label}
	}
	return out
}

func (b *builder) runBrowse(ctx context.Context, args []string) error {
	fs := newFlags("browse")
	scopeOf := scopeFlag(fs)
	workspace := workspaceFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	scope, err := scopeOf()
	if err != nil {
		return err
	}

	return b.withEnv(workspace(), func(env *Env) error {
		if !env.Interactive() {
			return errors.New("browse needs an interactive terminal; use 'wtsync list' instead")
		}
		svc := env.Cache(nil)
		if scope == cache.Workspace {
			if err := svc.SetWorkspaceFolders(ctx, workspace()); err != nil {
				return err
			}
		}
		svc.Start()

		m := tui.NewModel(svc, env.Builder, env.Bus, env.Config.Theme, scope)
		item, ok, err := tui.Run(ctx, m)
		if err != nil || !ok {
			return err
		}
		return env.Orchestrator().Open(ctx, item.Path, true)
	})
}

func (b *builder) runRefresh(ctx context.Context, args []string) error {
	fs := newFlags("refresh")
	scopeOf := scopeFlag(fs)
	workspace := workspaceFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	scope, err := scopeOf()
	if err != nil {
		return err
	}

	client, _, err := b.delegate().Client()
	switch {
	case err == nil:
		res, err := client.Refresh(scope)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(b.app.Stdout, "%s: %d worktrees (daemon)\n", res.Scope, res.Count)
		return err
	case !errors.Is(err, instance.ErrNotRunning):
		return err
	}

	return b.withEnv(workspace(), func(env *Env) error {
		svc := env.Cache(nil)
		if scope == cache.Workspace {
			if err := svc.SetWorkspaceFolders(ctx, workspace()); err != nil {
				return err
			}
		}
		if err := svc.Refresh(ctx, scope); err != nil {
			return err
		}
		_, err := fmt.Fprintf(env.Stdout, "%s: %d worktrees\n", scope, len(svc.Get(scope)))
		return err
	})
}
