// pattern: Functional Core
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
)

// Command represents a single CLI command with its metadata and handler.
type Command struct {
	Name           string
	Summary        string
	Usage          string
	RequiresDaemon bool
	Run            func(ctx context.Context, args []string) error
}

// Group represents a group of related commands.
type Group struct {
	Name     string
	Summary  string
	Commands map[string]*Command
}

// App represents the top-level CLI application with groups and ungrouped commands.
type App struct {
	groups   map[string]*Group
	commands map[string]*Command
	version  string

	// Default is the command run when no arguments are given.
	Default string

	Stdout io.Writer
	Stderr io.Writer
}

// NewApp creates a new CLI application with the given version.
func NewApp(version string) *App {
	return &App{
		groups:   make(map[string]*Group),
		commands: make(map[string]*Command),
		version:  version,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// AddGroup creates and registers a new command group.
func (a *App) AddGroup(name, summary string) *Group {
	g := &Group{
		Name:     name,
		Summary:  summary,
		Commands: make(map[string]*Command),
	}
	a.groups[name] = g
	return g
}

// AddCommand registers an ungrouped (top-level) command.
func (a *App) AddCommand(cmd *Command) {
	a.commands[cmd.Name] = cmd
}

// AddCommand registers a command in the group.
func (g *Group) AddCommand(cmd *Command) {
	g.Commands[cmd.Name] = cmd
}

func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// Execute dispatches the CLI arguments to the appropriate command and
// returns the process exit code.
func (a *App) Execute(ctx context.Context, args []string) int {
	if len(args) == 0 {
		if cmd, ok := a.commands[a.Default]; ok {
			return a.run(ctx, cmd, nil)
		}
		a.PrintHelp(a.Stderr)
		return ExitError
	}

	cmdName := args[0]

	if cmdName == "help" || cmdName == "--help" || cmdName == "-h" {
		a.PrintHelp(a.Stdout)
		return ExitOK
	}

	if cmd, ok := a.commands[cmdName]; ok {
		if wantsHelp(args[1:]) {
			fmt.Fprintf(a.Stderr, "%s\n", cmd.Usage)
			return ExitOK
		}
		return a.run(ctx, cmd, args[1:])
	}

	if group, ok := a.groups[cmdName]; ok {
		// Group with no subcommand, "help", or --help/-h
		if len(args) < 2 || args[1] == "help" || args[1] == "--help" || args[1] == "-h" {
			group.PrintHelp(a.Stderr)
			return ExitOK
		}

		if cmd, ok := group.Commands[args[1]]; ok {
			if wantsHelp(args[2:]) {
				fmt.Fprintf(a.Stderr, "%s\n", cmd.Usage)
				return ExitOK
			}
			return a.run(ctx, cmd, args[2:])
		}

		group.PrintHelp(a.Stderr)
		return ExitError
	}

	a.PrintHelp(a.Stderr)
	return ExitError
}

func (a *App) run(ctx context.Context, cmd *Command, args []string) int {
	err := cmd.Run(ctx, args)
	if err == nil {
		return ExitOK
	}
	var ue *UsageError
	if errors.As(err, &ue) {
		fmt.Fprintf(a.Stderr, "error: %s\n%s\n", ue.Msg, cmd.Usage)
		return ExitError
	}
	if shouldPrint(err) {
		fmt.Fprintf(a.Stderr, "error: %s\n", errorMessage(err))
	}
	return ExitCode(err)
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: wtsync [options] [command]\n\n")
	fmt.Fprintf(w, "Commands:\n")

	for _, name := range slices.Sorted(maps.Keys(a.commands)) {
		cmd := a.commands[name]
		summary := cmd.Summary
		if cmd.RequiresDaemon {
			summary += " (requires running daemon)"
		}
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, summary)
	}
	if a.Default != "" {
		fmt.Fprintf(w, "  %-10s %s\n", "(none)", "Same as "+a.Default)
	}

	if len(a.groups) > 0 {
		fmt.Fprintf(w, "\nCommand Groups:\n")
		for _, name := range slices.Sorted(maps.Keys(a.groups)) {
			group := a.groups[name]
			fmt.Fprintf(w, "  %-10s %s\n", group.Name, group.Summary)
		}
	}

	fmt.Fprintf(w, "\nUse \"wtsync <group> help\" for group details.\n\n")
	fmt.Fprintf(w, "Options:\n")
}

// PrintHelp prints help for a specific group.
func (g *Group) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: wtsync %s <command>\n\n", g.Name)
	fmt.Fprintf(w, "Commands:\n")
	// Sort command names for deterministic output
	names := slices.Sorted(maps.Keys(g.Commands))
	for _, name := range names {
		cmd := g.Commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintf(w, "\nUse \"wtsync %s <command> --help\" for command details.\n", g.Name)
}
