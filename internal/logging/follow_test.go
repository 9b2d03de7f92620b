// pattern: Imperative Shell

package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFollower_Backlog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wtsync.log")
	writeLines(t, path,
		`{"level":"info","logger":"git","msg":"one"}`,
		`garbage`,
		`{"level":"info","logger":"git","msg":"two"}`,
		`{"level":"info","logger":"git","msg":"three"}`,
	)

	sink := NewChannelSink(10)
	f, err := NewFollower(path, sink)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := f.Backlog(2); err != nil {
		t.Fatalf("Backlog() error = %v", err)
	}
	if got := (<-sink.Entries()).Message; got != "two" {
		t.Errorf("first backlog entry = %q, want two", got)
	}
	if got := (<-sink.Entries()).Message; got != "three" {
		t.Errorf("second backlog entry = %q, want three", got)
	}
}

func TestFollower_MissingFileBacklog(t *testing.T) {
	sink := NewChannelSink(1)
	f, err := NewFollower(filepath.Join(t.TempDir(), "absent.log"), sink)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := f.Backlog(10); err != nil {
		t.Errorf("Backlog() on missing file error = %v", err)
	}
}

func TestFollower_FollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wtsync.log")
	writeLines(t, path, `{"level":"info","msg":"old"}`)

	sink := NewChannelSink(10)
	f, err := NewFollower(path, sink)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = f.Start(ctx)
		close(done)
	}()

	// Give the watcher time to register before appending.
	time.Sleep(100 * time.Millisecond)
	writeLines(t, path, `{"level":"error","logger":"cache","msg":"new"}`)

	select {
	case e := <-sink.Entries():
		if e.Message != "new" || e.Level != "ERROR" {
			t.Errorf("got %+v, want the appended entry", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for followed entry")
	}

	cancel()
	<-done
}
