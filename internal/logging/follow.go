// pattern: Imperative Shell

package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Follower tails a JSON log file written by a Manager (possibly in another
// process) and forwards parsed entries to a ChannelSink. Rotation is handled
// by reopening the file when it is recreated.
type Follower struct {
	filePath string
	sink     *ChannelSink
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	file   *os.File
	offset int64
	closed bool
}

// NewFollower creates a follower for filePath feeding sink.
func NewFollower(filePath string, sink *ChannelSink) (*Follower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Follower{filePath: filePath, sink: sink, watcher: watcher}, nil
}

// Backlog sends the last n entries already in the file, then positions the
// follower at the end. n <= 0 skips the backlog.
func (f *Follower) Backlog(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.openFile(false); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var tail []LogEntry
	scanner := bufio.NewScanner(f.file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, err := ParseEntry(scanner.Bytes())
		if err != nil {
			continue
		}
		tail = append(tail, entry)
		if n > 0 && len(tail) > n {
			tail = tail[1:]
		}
	}
	if n > 0 {
		for _, e := range tail {
			f.sink.Send(e)
		}
	}
	if pos, err := f.file.Seek(0, io.SeekCurrent); err == nil {
		f.offset = pos
	}
	return nil
}

// Start follows the file until ctx is cancelled.
func (f *Follower) Start(ctx context.Context) error {
	dir := filepath.Dir(f.filePath)
	if err := f.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	f.mu.Lock()
	_ = f.openFile(true)
	f.mu.Unlock()

	// Polling catches writes on filesystems that drop events.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return ctx.Err()

		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.filePath) {
				continue
			}
			f.mu.Lock()
			switch {
			case event.Has(fsnotify.Create):
				f.closeFile()
				_ = f.openFile(false)
				f.readNewLines()
			case event.Has(fsnotify.Write):
				f.readNewLines()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				f.closeFile()
			}
			f.mu.Unlock()

		case <-ticker.C:
			f.mu.Lock()
			if f.file == nil {
				_ = f.openFile(false)
			}
			f.readNewLines()
			f.mu.Unlock()

		case _, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

func (f *Follower) openFile(seekToEnd bool) error {
	if f.file != nil {
		return nil
	}
	file, err := os.Open(f.filePath)
	if err != nil {
		return err
	}
	var offset int64
	if seekToEnd {
		offset, err = file.Seek(0, io.SeekEnd)
		if err != nil {
			_ = file.Close()
			return err
		}
	}
	f.file = file
	f.offset = offset
	return nil
}

func (f *Follower) closeFile() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
		f.offset = 0
	}
}

func (f *Follower) readNewLines() {
	if f.file == nil {
		return
	}
	if _, err := f.file.Seek(f.offset, io.SeekStart); err != nil {
		return
	}

	reader := bufio.NewReader(f.file)
	consumed := f.offset
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// Partial trailing line: leave it for the next read.
			break
		}
		consumed += int64(len(line))
		if entry, perr := ParseEntry(line); perr == nil {
			f.sink.Send(entry)
		}
	}
	f.offset = consumed
}

// Close stops the follower. Safe to call multiple times.
func (f *Follower) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.closeFile()
	return f.watcher.Close()
}
