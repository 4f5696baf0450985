package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

var levelNames = map[string]LogLevel{
	"ERROR": LogLevelError,
	"WARN":  LogLevelWarn,
	"INFO":  LogLevelInfo,
	"DEBUG": LogLevelDebug,
	"TRACE": LogLevelTrace,
}

// ParseLogLevel maps a level name (case-insensitive) to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	if level, ok := levelNames[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return level, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger provides leveled logging with an optional component prefix
type Logger struct {
	level  LogLevel
	prefix string
	out    *log.Logger
}

// NewLogger creates a new logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level, out: log.New(os.Stderr, "", log.LstdFlags)}
}

// NewLoggerTo creates a logger writing to w, mostly for tests
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	return &Logger{level: level, out: log.New(w, "", 0)}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	level := LogLevelInfo
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if parsed, err := ParseLogLevel(levelStr); err == nil {
			level = parsed
		}
	}
	return NewLogger(level)
}

// With returns a logger sharing level and output that tags lines with component.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{level: l.level, prefix: "[" + component + "] ", out: l.out}
}

func (l *Logger) logf(min LogLevel, tag, format string, args ...interface{}) {
	if l == nil || l.level < min {
		return
	}
	l.out.Printf(tag+l.prefix+format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LogLevelError, "[ERROR] ", format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LogLevelWarn, "[WARN] ", format, args...)
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LogLevelInfo, "[INFO] ", format, args...)
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LogLevelDebug, "[DEBUG] ", format, args...)
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	l.logf(LogLevelTrace, "[TRACE] ", format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
