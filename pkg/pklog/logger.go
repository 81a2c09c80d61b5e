// Package pklog provides the leveled logger shared by the pkmeter packages.
//
// Output follows the server log style: one line per message, either
// "[LEVEL] message" text or a JSON object, written to an injected io.Writer.
package pklog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a config level name to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", name)
}

// Logger is the logging interface accepted by every pkmeter component.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// entry is a single JSON log line
type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// writerLogger writes to an io.Writer
type writerLogger struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format string // "json" or "text"
	now    func() time.Time
}

// New returns a logger writing messages at or above level to w.
// Format is "text" (default) or "json".
func New(w io.Writer, level Level, format string) Logger {
	if format == "" {
		format = "text"
	}
	return &writerLogger{w: w, level: level, format: format, now: time.Now}
}

func (l *writerLogger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *writerLogger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *writerLogger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *writerLogger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *writerLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == "json" {
		data, err := json.Marshal(entry{
			Timestamp: l.now().Format(time.RFC3339),
			Level:     strings.ToLower(level.String()),
			Message:   msg,
		})
		if err != nil {
			return
		}
		fmt.Fprintf(l.w, "%s\n", data)
		return
	}
	fmt.Fprintf(l.w, "[%s] %s\n", level, msg)
}

// Buffer captures log output for later inspection, mostly in tests.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{lines: make([]string, 0)}
}

func (b *Buffer) Debugf(format string, args ...any) { b.add(LevelDebug, format, args...) }
func (b *Buffer) Infof(format string, args ...any)  { b.add(LevelInfo, format, args...) }
func (b *Buffer) Warnf(format string, args ...any)  { b.add(LevelWarn, format, args...) }
func (b *Buffer) Errorf(format string, args ...any) { b.add(LevelError, format, args...) }

func (b *Buffer) add(level Level, format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...)))
}

// Lines returns a copy of the captured lines.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]string, len(b.lines))
	copy(result, b.lines)
	return result
}

// Contains reports whether any captured line contains substr.
func (b *Buffer) Contains(substr string) bool {
	for _, line := range b.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// String returns all captured output joined by newlines.
func (b *Buffer) String() string {
	lines := b.Lines()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Reset clears all captured output
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = b.lines[:0]
}

type discard struct{}

func (discard) Debugf(string, ...any) {}
func (discard) Infof(string, ...any)  {}
func (discard) Warnf(string, ...any)  {}
func (discard) Errorf(string, ...any) {}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
