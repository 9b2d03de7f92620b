// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"wtsync/internal/folders"
)

func registerFolderCommands(b *builder, g *Group) {
	g.AddCommand(&Command{
		Name:    "list",
		Summary: "List registered repositories",
		Usage:   "Usage: wtsync folders list [--json]",
		Run: func(_ context.Context, args []string) error {
			fs := newFlags("list")
			asJSON := fs.Bool("json", false, "print JSON")
			if err := parse(fs, args); err != nil {
				return err
			}
			return b.withEnv(nil, func(env *Env) error {
				list, err := env.Folders.List()
				if err != nil {
					return err
				}
				if *asJSON {
					if list == nil {
						list = []folders.GitFolder{}
					}
					return WriteJSON(env.Stdout, list)
				}
				return writeFolders(env.Stdout, list)
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "add",
		Summary: "Register the repository containing a path",
		Usage:   "Usage: wtsync folders add <path> [--name <name>]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("add")
			name := fs.StringP("name", "n", "", "display name (default: directory name)")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return usagef("expected a path")
			}
			return b.withEnv(nil, func(env *Env) error {
				f, err := env.Orchestrator().AddFolder(ctx, absPath(fs.Arg(0)), *name)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(env.Stdout, "Added %s (%s)\n", f.Name, f.Path)
				return err
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "remove",
		Summary: "Unregister a repository",
		Usage:   "Usage: wtsync folders remove <path>",
		Run: func(_ context.Context, args []string) error {
			fs := newFlags("remove")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return usagef("expected a path")
			}
			return b.withEnv(nil, func(env *Env) error {
				return env.Orchestrator().RemoveFolder(absPath(fs.Arg(0)))
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "rename",
		Summary: "Change the display name of a repository",
		Usage:   "Usage: wtsync folders rename <path> [name]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("rename")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() < 1 || fs.NArg() > 2 {
				return usagef("expected a path and an optional name")
			}
			return b.withEnv(nil, func(env *Env) error {
				return env.Orchestrator().RenameFolder(ctx, absPath(fs.Arg(0)), fs.Arg(1))
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "toggle",
		Summary: "Toggle whether a repository starts expanded",
		Usage:   "Usage: wtsync folders toggle <path>",
		Run: func(_ context.Context, args []string) error {
			fs := newFlags("toggle")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return usagef("expected a path")
			}
			return b.withEnv(nil, func(env *Env) error {
				open, err := env.Orchestrator().ToggleFolderOpen(absPath(fs.Arg(0)))
				if err != nil {
					return err
				}
				state := "collapsed"
				if open {
					state = "expanded"
				}
				_, err = fmt.Fprintln(env.Stdout, state)
				return err
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "scan",
		Summary: "Find repositories one level below directories",
		Usage:   "Usage: wtsync folders scan [dir...] [--add] [--json]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlags("scan")
			add := fs.Bool("add", false, "register the repositories found")
			asJSON := fs.Bool("json", false, "print JSON")
			if err := parse(fs, args); err != nil {
				return err
			}
			return b.withEnv(nil, func(env *Env) error {
				dirs := fs.Args()
				if len(dirs) == 0 {
					dirs = env.Config.ResolveScanPaths()
				}
				if len(dirs) == 0 {
					return usagef("no directory given and scan_paths is not configured")
				}
				found, err := env.Folders.MarkRegistered(folders.Scan(dirs))
				if err != nil {
					return err
				}
				env.Logger.Info("scanned for repositories", "dirs", dirs, "found", len(found))

				if *add {
					orch := env.Orchestrator()
					for i, c := range found {
						if c.Registered {
							continue
						}
						if _, err := orch.AddFolder(ctx, c.Path, c.Name); err != nil {
							return err
						}
						found[i].Registered = true
					}
				}
				if *asJSON {
					if found == nil {
						found = []folders.Candidate{}
					}
					return WriteJSON(env.Stdout, found)
				}
				for _, c := range found {
					mark := " "
					if c.Registered {
						mark = "*"
					}
					fmt.Fprintf(env.Stdout, "%s %-24s %s\n", mark, c.Name, c.Path)
				}
				return nil
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "favorites",
		Summary: "List favorites",
		Usage:   "Usage: wtsync folders favorites [--json]",
		Run:     b.itemsCommand("favorites", (*folders.Registry).Favorites),
	})

	g.AddCommand(&Command{
		Name:    "recents",
		Summary: "List recently opened locations",
		Usage:   "Usage: wtsync folders recents [--json]",
		Run:     b.itemsCommand("recents", (*folders.Registry).Recents),
	})

	g.AddCommand(&Command{
		Name:    "favorite",
		Summary: "Add a location to favorites",
		Usage:   "Usage: wtsync folders favorite <path> [--label <label>] [--type folder|file|workspace]",
		Run: func(_ context.Context, args []string) error {
			fs := newFlags("favorite")
			label := fs.StringP("label", "l", "", "display label (default: base name)")
			kind := fs.StringP("type", "t", string(folders.TypeFolder), "folder, file or workspace")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return usagef("expected a path")
			}
			t := folders.ItemType(*kind)
			switch t {
			case folders.TypeFolder, folders.TypeFile, folders.TypeWorkspace:
			default:
				return usagef("unknown type %q", *kind)
			}
			p := absPath(fs.Arg(0))
			if *label == "" {
				*label = filepath.Base(p)
			}
			return b.withEnv(nil, func(env *Env) error {
				return env.Orchestrator().AddFavorite(folders.Item{Label: *label, Path: p, Type: t})
			})
		},
	})

	g.AddCommand(&Command{
		Name:    "unfavorite",
		Summary: "Remove a location from favorites",
		Usage:   "Usage: wtsync folders unfavorite <path>",
		Run: func(_ context.Context, args []string) error {
			fs := newFlags("unfavorite")
			if err := parse(fs, args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return usagef("expected a path")
			}
			return b.withEnv(nil, func(env *Env) error {
				return env.Orchestrator().RemoveFavorite(absPath(fs.Arg(0)))
			})
		},
	})
}

func (b *builder) itemsCommand(name string, get func(*folders.Registry) ([]folders.Item, error)) func(context.Context, []string) error {
	return func(_ context.Context, args []string) error {
		fs := newFlags(name)
		asJSON := fs.Bool("json", false, "print JSON")
		if err := parse(fs, args); err != nil {
			return err
		}
		return b.withEnv(nil, func(env *Env) error {
			items, err := get(env.Folders)
			if err != nil {
				return err
			}
			if *asJSON {
				if items == nil {
					items = []folders.Item{}
				}
				return WriteJSON(env.Stdout, items)
			}
			for _, it := range items {
				fmt.Fprintf(env.Stdout, "%-10s %-24s %s\n", it.Type, it.Label, it.Path)
			}
			return nil
		})
	}
}

func writeFolders(w io.Writer, list []folders.GitFolder) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No repositories registered.")
		return err
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers("NAME", "OPEN", "PATH")
	for _, f := range list {
		open := ""
		if f.DefaultOpen {
			open = "yes"
		}
		t.Row(f.Name, open, f.Path)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
