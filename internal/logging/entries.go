// pattern: Functional Core

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LogEntry is one structured diagnostic entry.
type LogEntry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"` // DEBUG, INFO, WARN, ERROR
	Scope     string         `json:"scope"` // e.g. "git", "watch./home/me/repo"
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// String renders the entry on one line with fields sorted by key.
func (e LogEntry) String() string {
	var sb strings.Builder
	sb.WriteString(e.Timestamp.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(e.Level)
	sb.WriteString(" [")
	sb.WriteString(e.Scope)
	sb.WriteString("] ")
	sb.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Fields[k])
	}
	return sb.String()
}

// MatchesScope reports whether the entry's scope is prefix or below it.
// An empty prefix matches everything.
func (e LogEntry) MatchesScope(prefix string) bool {
	if prefix == "" {
		return true
	}
	return e.Scope == prefix || strings.HasPrefix(e.Scope, prefix+".")
}

// AtLeast reports whether the entry's level is at or above min.
func (e LogEntry) AtLeast(min string) bool {
	return levelRank(e.Level) >= levelRank(ParseLevel(min))
}

// ParseLevel normalizes a level name to upper case, "INFO" when unknown.
func ParseLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error", "dpanic", "panic", "fatal":
		return "ERROR"
	default:
		return "INFO"
	}
}

func levelRank(level string) int {
	switch level {
	case "DEBUG":
		return 0
	case "WARN":
		return 2
	case "ERROR":
		return 3
	default:
		return 1
	}
}
