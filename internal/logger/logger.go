package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity level of a log message.
type LogLevel string

const (
	Debug LogLevel = "DEBUG"
	Info  LogLevel = "INFO"
	Warn  LogLevel = "WARN"
	Error LogLevel = "ERROR"
)

// Sink is the logging capability handed to every component.
// Components never reach for a package-level logger.
type Sink interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// levelPriority returns the numeric priority of a log level (higher = more severe)
func levelPriority(level LogLevel) int {
	switch level {
	case Debug:
		return 0
	case Info:
		return 1
	case Warn:
		return 2
	case Error:
		return 3
	default:
		return 1
	}
}

// ParseLevel converts "debug", "info", "warn", "error" to a LogLevel. Unknown values map to Info.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// LogEntry represents a single log message with metadata.
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
}

// Logger writes level-filtered lines to its output. It is safe for concurrent use.
type Logger struct {
	mu         *sync.Mutex
	out        io.Writer
	minLevel   LogLevel
	prefix     string
	fileLogger *lumberjack.Logger
	now        func() time.Time
}

var _ Sink = (*Logger)(nil)

// New creates a logger writing to out at the given minimum level.
func New(out io.Writer, level string) *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		out:      out,
		minLevel: ParseLevel(level),
		now:      time.Now,
	}
}

// NewWithFile creates a logger writing to stdout and, when logDir is set, to a
// rotating log file inside logDir.
func NewWithFile(logDir, level string) (*Logger, error) {
	l := New(os.Stdout, level)
	if logDir == "" {
		return l, nil
	}

	// Restricted permissions: API responses may land in debug output
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return l, fmt.Errorf("failed to create log directory: %w", err)
	}

	l.fileLogger = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "arrfinalize.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	l.out = io.MultiWriter(os.Stdout, l.fileLogger)
	return l, nil
}

// LogDir returns the directory where log files are stored, or "" when file logging is off.
func (l *Logger) LogDir() string {
	if l.fileLogger != nil {
		return filepath.Dir(l.fileLogger.Filename)
	}
	return ""
}

// Level returns the minimum level this logger emits.
func (l *Logger) Level() LogLevel {
	return l.minLevel
}

// With returns a child logger sharing the output that prefixes every message with tag.
func (l *Logger) With(tag string) *Logger {
	child := *l
	if l.prefix != "" {
		child.prefix = l.prefix + " " + "[" + tag + "]"
	} else {
		child.prefix = "[" + tag + "]"
	}
	return &child
}

// Close flushes and closes the rotating file, if any.
func (l *Logger) Close() error {
	if l.fileLogger != nil {
		return l.fileLogger.Close()
	}
	return nil
}

// Log writes a formatted message at the specified level.
func (l *Logger) Log(level LogLevel, format string, v ...interface{}) {
	if levelPriority(level) < levelPriority(l.minLevel) {
		return
	}

	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}
	entry := LogEntry{
		Timestamp: l.now().Format(time.RFC3339),
		Level:     level,
		Message:   msg,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Format: timestamp [LEVEL] message
	fmt.Fprintf(l.out, "%s [%s] %s\n", entry.Timestamp, entry.Level, entry.Message)
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.Log(Info, format, v...)
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.Log(Error, format, v...)
}

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.Log(Debug, format, v...)
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.Log(Warn, format, v...)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(io.Discard, "error")
}

// MaskSecret keeps the last four characters of a secret for debug output.
func MaskSecret(s string) string {
	if s == "" {
		return "(empty)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
