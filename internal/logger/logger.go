// Package logger provides a small leveled logger scoped to a component name.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level controls which messages are emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

var (
	mu       sync.Mutex
	minLevel = LevelInfo
	std      = log.New(os.Stderr, "", log.Ldate|log.Ltime)
)

func init() {
	if os.Getenv("CHAT_ENV") == "development" {
		minLevel = LevelDebug
	}
}

// SetMinLevel changes the minimum level emitted at runtime.
func SetMinLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = level
}

// SetOutput redirects all log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

// Logger tags every line with a component name.
type Logger struct {
	component string
}

// New creates a logger for a specific component.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) logf(level Level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}
	prefix := fmt.Sprintf("[%s][%s] ", levelNames[level], l.component)
	std.Printf(prefix+format, args...)
}

// Debug logs developer diagnostics.
func (l *Logger) Debug(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

// Info logs normal operational messages.
func (l *Logger) Info(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

// Warn logs recoverable problems.
func (l *Logger) Warn(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

// Error logs failures that were surfaced to a caller.
func (l *Logger) Error(format string, args ...any) {
	l.logf(LevelError, format, args...)
}
