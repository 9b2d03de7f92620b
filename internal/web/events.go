// pattern: Imperative Shell

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"wtsync/internal/events"
)

// KindLog is the envelope kind of forwarded diagnostic log entries.
const KindLog events.Kind = "log"

const subscriberBuf = 32

// eventBroker fans out envelopes to SSE and websocket subscribers.
type eventBroker struct {
	mu          sync.Mutex
	subscribers map[chan events.Envelope]struct{}
	closed      bool
}

func newEventBroker() *eventBroker {
	return &eventBroker{
		subscribers: make(map[chan events.Envelope]struct{}),
	}
}

// Subscribe returns a buffered channel receiving every notified envelope.
// The caller must call Unsubscribe when done. After CloseAll the channel is
// returned already closed.
func (b *eventBroker) Subscribe() chan events.Envelope {
	ch := make(chan events.Envelope, subscriberBuf)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *eventBroker) Unsubscribe(ch chan events.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Notify sends env to all subscribers. Non-blocking: a subscriber whose
// buffer is full misses env.
func (b *eventBroker) Notify(env events.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- env:
		default:
		}
	}
}

// CloseAll closes every subscriber so streaming handlers return.
func (b *eventBroker) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}

// pump forwards bus events and log entries to the broker until ctx ends.
func (s *Server) pump(ctx context.Context, sub *events.Subscription) {
	defer close(s.done)

	var evs <-chan events.Event
	if sub != nil {
		defer sub.Close()
		evs = sub.C()
	}
	logs := s.deps.Logs

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				evs = nil
				continue
			}
			env, err := events.Encode(ev)
			if err != nil {
				s.logger.Warn("event not encodable", "kind", string(ev.Kind()), "error", err)
				continue
			}
			s.events.Notify(env)
		case entry, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			s.events.Notify(events.Envelope{Kind: KindLog, Time: entry.Timestamp, Data: data})
		}
	}
}

// kindFilter parses ?kinds=a,b. An empty result accepts every kind.
func kindFilter(r *http.Request) map[events.Kind]bool {
	raw := r.URL.Query().Get("kinds")
	if raw == "" {
		return nil
	}
	out := make(map[events.Kind]bool)
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out[events.Kind(k)] = true
		}
	}
	return out
}

func accepts(filter map[events.Kind]bool, k events.Kind) bool {
	return len(filter) == 0 || filter[k]
}

// handleEvents is the SSE endpoint. It sends a "connected" event on open,
// then one event per envelope named after its kind.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	filter := kindFilter(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if !accepts(filter, env.Kind) {
				continue
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Kind, data)
			flusher.Flush()
		}
	}
}
