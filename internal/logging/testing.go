// pattern: Imperative Shell

package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards all output.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// NopProvider hands out NopLogger for every scope.
type NopProvider struct{}

// For implements LoggerProvider.
func (NopProvider) For(string) *ScopedLogger { return NopLogger() }

// TestLogManager is a channel-only LoggerProvider for tests.
type TestLogManager struct {
	channelSink *ChannelSink
	baseZap     *zap.Logger
	loggers     map[string]*ScopedLogger
	mu          sync.Mutex
}

// NewTestLogManager creates a TestLogManager that records DEBUG and above.
func NewTestLogManager(bufferSize int) *TestLogManager {
	channelSink := NewChannelSink(bufferSize)
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(channelSink),
		zapcore.DebugLevel,
	)
	return &TestLogManager{
		channelSink: channelSink,
		baseZap:     zap.New(core),
		loggers:     make(map[string]*ScopedLogger),
	}
}

// For returns a scoped logger, matching Manager.For.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.loggers[scope]; ok {
		return logger
	}
	logger := newScopedLogger(m.baseZap, scope, zapcore.DebugLevel)
	m.loggers[scope] = logger
	return logger
}

// Channel returns the channel receiving entries.
func (m *TestLogManager) Channel() <-chan LogEntry {
	return m.channelSink.Entries()
}

// Drain returns every entry currently buffered without blocking.
func (m *TestLogManager) Drain() []LogEntry {
	var out []LogEntry
	for {
		select {
		case e, ok := <-m.channelSink.Entries():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

// Close closes the test log manager.
func (m *TestLogManager) Close() error {
	return m.channelSink.Close()
}
