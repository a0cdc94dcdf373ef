// SPDX-License-Identifier: MIT
// Package log is the leveled logger used across the analyser. It wraps the
// standard library logger with an atomically switchable global level so the
// audio goroutine can check the level without locking.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

// output is swapped atomically so tests can capture log lines.
var output atomic.Pointer[stdlog.Logger]

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	output.Store(stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds))
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

func emit(level LogLevel, prefix, msg string) {
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	// Pad the shorter level names so messages line up.
	pad := ""
	if len(level.String()) == 4 {
		pad = " "
	}
	output.Load().Printf("[%s]%s %s", level, pad, msg)
}

// Logger is a component-scoped view of the global logger. The zero value
// logs without a prefix.
type Logger struct {
	prefix string
}

// With returns a Logger whose messages are prefixed with component.
func With(component string) Logger {
	return Logger{prefix: component}
}

// Debugf logs a formatted debug message if the level is appropriate.
func (l Logger) Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		emit(LevelDebug, l.prefix, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func (l Logger) Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		emit(LevelInfo, l.prefix, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func (l Logger) Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		emit(LevelWarn, l.prefix, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func (l Logger) Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		emit(LevelError, l.prefix, fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func (l Logger) Fatalf(format string, v ...any) {
	emit(LevelFatal, l.prefix, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// --- Package level helpers for unscoped messages ---

var root Logger

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { root.Debugf(format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { root.Infof(format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { root.Warnf(format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { root.Errorf(format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
func Fatalf(format string, v ...any) { root.Fatalf(format, v...) }
