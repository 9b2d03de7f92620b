// pattern: Imperative Shell
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"wtsync/internal/cli"
)

var version = "dev"

// rootFlags binds the global options. Parsing stops at the first non-flag
// argument (the subcommand), so --help after a subcommand is handled by
// the subcommand.
func rootFlags(opts *cli.Options) *flag.FlagSet {
	fs := flag.NewFlagSet("wtsync", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringVarP(&opts.ConfigDir, "config-dir", "c", "", "config directory (default: ~/.config/wtsync)")
	fs.StringVar(&opts.DataDir, "data-dir", "", "state directory (default: $XDG_STATE_HOME/wtsync)")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "mirror diagnostics to stderr")
	fs.BoolVar(&opts.NoInput, "no-input", false, "never prompt; fail instead")
	return fs
}

func main() {
	var opts cli.Options
	fs := rootFlags(&opts)
	fs.Usage = func() {
		cli.BuildApp(version, opts).PrintHelp(os.Stderr)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(cli.ExitOK)
		}
		os.Exit(cli.ExitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.BuildApp(version, opts).Execute(ctx, fs.Args())
	stop()
	os.Exit(code)
}
