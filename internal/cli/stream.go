// pattern: Imperative Shell
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"wtsync/internal/logging"
)

// eventsURL turns the daemon's base URL into its websocket endpoint.
func eventsURL(baseURL, kinds string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/ws"
	if kinds != "" {
		u.RawQuery = url.Values{"kinds": {kinds}}.Encode()
	}
	return u.String(), nil
}

// runEvents prints daemon events as JSON lines until interrupted.
func (b *builder) runEvents(ctx context.Context, args []string) error {
	fs := newFlags("events")
	kinds := fs.StringP("kinds", "k", "", "comma-separated event kinds to show (default: all)")
	if err := parse(fs, args); err != nil {
		return err
	}

	_, baseURL, err := b.delegate().Client()
	if err != nil {
		return err
	}
	wsURL, err := eventsURL(baseURL, *kinds)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to daemon events: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusGoingAway {
				fmt.Fprintln(b.app.Stderr, "daemon stopped")
				return nil
			}
			return err
		}
		if _, err := fmt.Fprintln(b.app.Stdout, string(msg)); err != nil {
			return err
		}
	}
}

// runLogs prints the tail of the diagnostic log, optionally following it.
// It reads the file, so it works whether or not a daemon runs.
func (b *builder) runLogs(ctx context.Context, args []string) error {
	fs := newFlags("logs")
	lines := fs.IntP("lines", "n", 50, "number of entries to show")
	follow := fs.BoolP("follow", "f", false, "keep printing new entries")
	scope := fs.String("scope", "", "only entries at or below this scope")
	level := fs.String("level", "debug", "minimum level")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *lines < 0 {
		return usagef("--lines must not be negative")
	}

	sink := logging.NewChannelSink(max(*lines, 1000))
	follower, err := logging.NewFollower(filepath.Join(b.dataDir(), LogFileName), sink)
	if err != nil {
		return err
	}
	defer follower.Close()

	minLevel := strings.ToLower(*level)
	show := func(e logging.LogEntry) {
		if e.MatchesScope(*scope) && e.AtLeast(minLevel) {
			fmt.Fprintln(b.app.Stdout, e.String())
		}
	}
	drain := func() {
		for {
			select {
			case e := <-sink.Entries():
				show(e)
			default:
				return
			}
		}
	}

	if err := follower.Backlog(*lines); err != nil {
		return err
	}
	drain()
	if !*follow {
		return nil
	}

	errc := make(chan error, 1)
	go func() { errc <- follower.Start(ctx) }()
	for {
		select {
		case e := <-sink.Entries():
			show(e)
		case err := <-errc:
			drain()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
