// pattern: Imperative Shell

// Package events is the typed message bus shared by the cache, watch, state
// and presentation packages.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Kind names an event type.
type Kind string

const (
	KindRepoChanged     Kind = "repo_changed"
	KindCacheUpdated    Kind = "cache_updated"
	KindStateChanged    Kind = "state_changed"
	KindFoldersChanged  Kind = "folders_changed"
	KindWorktreeChanged Kind = "worktree_changed"
	KindListening       Kind = "listening"
)

// Event is anything published on a Bus.
type Event interface {
	Kind() Kind
}

// RepoChanged is published by the watch registry when something under a
// repository's metadata directory changed.
type RepoChanged struct {
	Root string `json:"root"` // registered repository root
	Path string `json:"path"` // file that changed
}

// CacheUpdated is published after a cache scope snapshot was replaced.
type CacheUpdated struct {
	Scope string `json:"scope"`
	Count int    `json:"count"`
}

// StateChanged is published after a durable state key was written.
type StateChanged struct {
	Scope string `json:"scope"`
	Key   string `json:"key"`
}

// FoldersChanged is published after the registered folder list changed.
type FoldersChanged struct {
	Added   string `json:"added,omitempty"`
	Removed string `json:"removed,omitempty"`
}

// WorktreeChanged is published by workflows after they mutate a worktree.
type WorktreeChanged struct {
	Action string `json:"action"`
	Root   string `json:"root"`
	Path   string `json:"path"`
}

// Listening is published when the web server starts listening.
type Listening struct {
	URL string `json:"url"`
}

func (RepoChanged) Kind() Kind     { return KindRepoChanged }
func (CacheUpdated) Kind() Kind    { return KindCacheUpdated }
func (StateChanged) Kind() Kind    { return KindStateChanged }
func (FoldersChanged) Kind() Kind  { return KindFoldersChanged }
func (WorktreeChanged) Kind() Kind { return KindWorktreeChanged }
func (Listening) Kind() Kind       { return KindListening }

// Envelope is the wire form of an event.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps ev in an Envelope.
func Encode(ev Event) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: ev.Kind(), Time: time.Now().UTC(), Data: data}, nil
}

// DefaultBufSize is the per-subscription buffer used when none is given.
const DefaultBufSize = 64

// Subscription receives events of the kinds it subscribed to.
type Subscription struct {
	ch    chan Event
	kinds map[Kind]bool // empty means every kind
	bus   *Bus
	once  sync.Once
}

// C returns the delivery channel. It is closed by Close or Bus.Close.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close unsubscribes and closes the channel.
func (s *Subscription) Close() {
	s.bus.remove(s)
}

func (s *Subscription) wants(k Kind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

// Bus fans events out to subscribers. Publish never blocks: a full
// subscriber loses its oldest undelivered event. Handlers registered with
// Handle see every event.
type Bus struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	handlers map[*handler]struct{}
	closed   bool
}

type handler struct {
	fn    func(Event)
	kinds map[Kind]bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{}), handlers: make(map[*handler]struct{})}
}

// Handle registers fn to run synchronously inside Publish for events of
// kinds (all kinds when none are given). Nothing is dropped, so fn must
// return quickly and must not publish. The returned func unregisters fn.
func (b *Bus) Handle(fn func(Event), kinds ...Kind) (unregister func()) {
	h := &handler{fn: fn, kinds: make(map[Kind]bool, len(kinds))}
	for _, k := range kinds {
		h.kinds[k] = true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	b.handlers[h] = struct{}{}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, h)
	}
}

// Subscribe registers for kinds (all kinds when none are given).
func (b *Bus) Subscribe(bufSize int, kinds ...Kind) *Subscription {
	if bufSize <= 0 {
		bufSize = DefaultBufSize
	}
	s := &Subscription{ch: make(chan Event, bufSize), kinds: make(map[Kind]bool, len(kinds)), bus: b}
	for _, k := range kinds {
		s.kinds[k] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		s.once.Do(func() {})
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every interested subscriber.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for h := range b.handlers {
		if len(h.kinds) == 0 || h.kinds[ev.Kind()] {
			h.fn(ev)
		}
	}
	for s := range b.subs {
		if s.wants(ev.Kind()) {
			deliver(s.ch, ev)
		}
	}
}

// deliver sends without blocking, dropping the oldest entry when full.
// Concurrent publishers may interleave; each send attempt is bounded.
func deliver(ch chan Event, ev Event) {
	for range 2 {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}

// Close closes every subscription. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.once.Do(func() { close(s.ch) })
	}
	b.subs = nil
	b.handlers = nil
}
