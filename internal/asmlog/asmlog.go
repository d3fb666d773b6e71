// Package asmlog provides the leveled, colorized diagnostic logging used
// by the CLI and, optionally, library callers. It is deliberately thin:
// a Logger is just an io.Writer plus a level and a color switch rather
// than a full structured-logging framework, since this tool's output is a stream of
// human-facing build messages, not machine-parsed logs.
package asmlog

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Level orders the four diagnostic severities this tool emits.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger writes leveled messages to Out, suppressing anything below
// Level, optionally colorizing by severity.
type Logger struct {
	Out   io.Writer
	Level Level
	Color bool
}

// New returns a Logger writing to stderr at LevelInfo, colorized unless
// NO_COLOR is set or stderr isn't a terminal (fatih/color handles that
// detection itself via color.NoColor).
func New() *Logger {
	return &Logger{Out: os.Stderr, Level: LevelInfo, Color: !color.NoColor}
}

func (l *Logger) logf(lvl Level, c *color.Color, prefix, format string, args ...any) {
	if l == nil || lvl > l.Level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.Color {
		c.Fprintf(l.Out, "%s: %s\n", prefix, msg)
		return
	}
	fmt.Fprintf(l.Out, "%s: %s\n", prefix, msg)
}

// Errorf reports a fatal or near-fatal condition, in red.
func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, color.New(color.FgRed, color.Bold), "error", format, args...)
}

// Warnf reports a recoverable anomaly, in yellow.
func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, color.New(color.FgYellow), "warning", format, args...)
}

// Infof reports routine progress, in cyan.
func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, color.New(color.FgCyan), "info", format, args...)
}

// Debugf reports verbose tracing, dim gray, shown only with --verbose.
func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, color.New(color.Faint), "debug", format, args...)
}
