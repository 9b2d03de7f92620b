package web

import (
	"net/http/httptest"
	"testing"
	"time"

	"wtsync/internal/events"
)

func env(kind events.Kind) events.Envelope {
	return events.Envelope{Kind: kind, Time: time.Now()}
}

func TestEventBroker_SubscribeNotify(t *testing.T) {
	b := newEventBroker()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Notify(env(events.KindCacheUpdated))

	for i, ch := range []chan events.Envelope{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Kind != events.KindCacheUpdated {
				t.Errorf("subscriber %d: kind = %q", i, got.Kind)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: expected envelope", i)
		}
	}
}

func TestEventBroker_FullSubscriberDoesNotBlock(t *testing.T) {
	b := newEventBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for range subscriberBuf + 5 {
			b.Notify(env(events.KindRepoChanged))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full subscriber")
	}
	if len(ch) != subscriberBuf {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBuf)
	}
}

func TestEventBroker_UnsubscribeCloses(t *testing.T) {
	b := newEventBroker()
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch) // second call is a no-op

	b.Notify(env(events.KindRepoChanged))
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestEventBroker_CloseAll(t *testing.T) {
	b := newEventBroker()
	ch := b.Subscribe()
	b.CloseAll()

	if _, ok := <-ch; ok {
		t.Fatal("existing subscriber should be closed")
	}
	b.Unsubscribe(ch)

	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("subscriber after CloseAll should start closed")
	}
}

func TestKindFilter(t *testing.T) {
	tests := []struct {
		query string
		kind  events.Kind
		want  bool
	}{
		{"", events.KindRepoChanged, true},
		{"?kinds=cache_updated", events.KindCacheUpdated, true},
		{"?kinds=cache_updated", events.KindRepoChanged, false},
		{"?kinds=log,%20repo_changed", events.KindRepoChanged, true},
		{"?kinds=log,%20repo_changed", KindLog, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/api/events"+tt.query, nil)
		if got := accepts(kindFilter(r), tt.kind); got != tt.want {
			t.Errorf("accepts(%q, %q) = %v, want %v", tt.query, tt.kind, got, tt.want)
		}
	}
}
