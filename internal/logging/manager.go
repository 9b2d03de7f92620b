// pattern: Imperative Shell

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Well-known scopes. Sub-scopes use a dot (e.g. "watch./home/me/repo").
const (
	ScopeApp      = "app"
	ScopeGit      = "git"
	ScopeWorktree = "worktree"
	ScopeCache    = "cache"
	ScopeWatch    = "watch"
	ScopeWorkflow = "workflow"
	ScopeState    = "state"
	ScopeWeb      = "web"
)

// Config holds configuration for the Manager.
type Config struct {
	FilePath       string    // Path to the JSON log file
	MaxSizeMB      int       // Max size in MB before rotation
	MaxBackups     int       // Max number of rotated files to keep
	MaxAgeDays     int       // Max days to keep rotated files
	Level          string    // Minimum level (debug, info, warn, error)
	ChannelBufSize int       // Buffer of the diagnostic channel (default 1000)
	Console        io.Writer // Optional human-readable mirror, used by --verbose
}

// LoggerProvider hands out scoped loggers.
// Both Manager and TestLogManager implement this interface.
type LoggerProvider interface {
	For(scope string) *ScopedLogger
}

// ScopedLogger is an slog front end over a named zap logger.
type ScopedLogger struct {
	slog  *slog.Logger
	scope string
}

// Debug logs at DEBUG level.
func (l *ScopedLogger) Debug(msg string, args ...any) {
	if l.slog != nil {
		l.slog.Debug(msg, args...)
	}
}

// Info logs at INFO level.
func (l *ScopedLogger) Info(msg string, args ...any) {
	if l.slog != nil {
		l.slog.Info(msg, args...)
	}
}

// Warn logs at WARN level.
func (l *ScopedLogger) Warn(msg string, args ...any) {
	if l.slog != nil {
		l.slog.Warn(msg, args...)
	}
}

// Error logs at ERROR level.
func (l *ScopedLogger) Error(msg string, args ...any) {
	if l.slog != nil {
		l.slog.Error(msg, args...)
	}
}

// DebugEnabled reports whether DEBUG entries would be written. Callers use it
// to skip building expensive debug fields.
func (l *ScopedLogger) DebugEnabled() bool {
	return l.slog != nil && l.slog.Enabled(context.Background(), slog.LevelDebug)
}

// With returns a logger that adds the given key-value pairs to every entry.
func (l *ScopedLogger) With(args ...any) *ScopedLogger {
	if l.slog == nil {
		return l
	}
	return &ScopedLogger{slog: l.slog.With(args...), scope: l.scope}
}

// Scope returns the logger's scope.
func (l *ScopedLogger) Scope() string {
	return l.scope
}

// Manager fans log output to a rotated JSON file and the diagnostic channel.
type Manager struct {
	baseZap     *zap.Logger
	channelSink *ChannelSink
	fileWriter  *lumberjack.Logger
	loggers     map[string]*ScopedLogger
	mu          sync.RWMutex
	level       zapcore.Level
}

// NewManager creates a log manager with the given configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("FilePath is required")
	}
	if cfg.ChannelBufSize == 0 {
		cfg.ChannelBufSize = 1000
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 7
	}

	level := parseZapLevel(cfg.Level)

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	channelSink := NewChannelSink(cfg.ChannelBufSize)

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(jsonEncoder, zapcore.AddSync(fileWriter), level),
		zapcore.NewCore(jsonEncoder.Clone(), zapcore.AddSync(channelSink), level),
	}
	if cfg.Console != nil {
		consoleCfg := encoderConfig()
		consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(zapcore.AddSync(cfg.Console)),
			level,
		))
	}

	return &Manager{
		baseZap:     zap.New(zapcore.NewTee(cores...)),
		channelSink: channelSink,
		fileWriter:  fileWriter,
		loggers:     make(map[string]*ScopedLogger),
		level:       level,
	}, nil
}

// For returns the cached logger for scope, creating it on first use.
func (m *Manager) For(scope string) *ScopedLogger {
	m.mu.RLock()
	if logger, ok := m.loggers[scope]; ok {
		m.mu.RUnlock()
		return logger
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.loggers[scope]; ok {
		return logger
	}
	logger := newScopedLogger(m.baseZap, scope, m.level)
	m.loggers[scope] = logger
	return logger
}

// Entries returns the diagnostic channel.
func (m *Manager) Entries() <-chan LogEntry {
	return m.channelSink.Entries()
}

// Sink returns the channel sink so other sources (a followed log file) can
// feed the same diagnostic channel.
func (m *Manager) Sink() *ChannelSink {
	return m.channelSink
}

// FilePath returns the path of the JSON log file.
func (m *Manager) FilePath() string {
	return m.fileWriter.Filename
}

// Sync flushes buffered output.
func (m *Manager) Sync() error {
	return m.baseZap.Sync()
}

// Close syncs and releases the file and the channel.
func (m *Manager) Close() error {
	_ = m.Sync()
	_ = m.channelSink.Close()
	return m.fileWriter.Close()
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.EpochTimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}

func parseZapLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func newScopedLogger(base *zap.Logger, scope string, level zapcore.Level) *ScopedLogger {
	return &ScopedLogger{
		slog:  slog.New(&zapSlogHandler{zap: base.Named(scope), level: level}),
		scope: scope,
	}
}

// zapSlogHandler adapts zap.Logger to slog.Handler.
type zapSlogHandler struct {
	zap   *zap.Logger
	level zapcore.Level
	attrs []slog.Attr
}

func (h *zapSlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZapLevel(level) >= h.level
}

func (h *zapSlogHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]zap.Field, 0, r.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields = append(fields, zapField(attr))
	}
	r.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, zapField(attr))
		return true
	})

	if ce := h.zap.Check(slogToZapLevel(r.Level), r.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (h *zapSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &zapSlogHandler{zap: h.zap, level: h.level, attrs: merged}
}

func (h *zapSlogHandler) WithGroup(name string) slog.Handler {
	return &zapSlogHandler{zap: h.zap.Named(name), level: h.level, attrs: h.attrs}
}

// zapField keeps errors as strings so the JSON output carries their text.
func zapField(attr slog.Attr) zap.Field {
	if err, ok := attr.Value.Any().(error); ok {
		return zap.String(attr.Key, err.Error())
	}
	return zap.Any(attr.Key, attr.Value.Any())
}

func slogToZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
