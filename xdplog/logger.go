// Package xdplog provides structured logging for xdpcore.
package xdplog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is a structured logger wrapping a logrus.Entry.
type Logger struct {
	*logrus.Entry
}

// New creates a new structured logger at the given level, logging
// JSON to stdout.
func New(level string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	logger.SetOutput(os.Stdout)

	entry := logger.WithField("component", "xdpcore")
	return &Logger{Entry: entry}
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns a package-wide logger at info level, lazily
// initialized on first use.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New("info")
	})
	return defaultLog
}

// SetDefault replaces the package-wide default logger, for callers
// that want a different level or output before sockets are built.
func SetDefault(l *Logger) {
	// Consume the lazy initialization so a later Default() cannot
	// overwrite l.
	defaultOnce.Do(func() {})
	defaultLog = l
}

// WithField returns a derived Logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithFields returns a derived Logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithFields(fields)}
}

// Info logs an info message with optional alternating key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Entry.WithFields(parseKeysAndValues(keysAndValues...)).Info(msg)
}

// Warn logs a warning message with optional alternating key-value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Entry.WithFields(parseKeysAndValues(keysAndValues...)).Warn(msg)
}

// Error logs an error message with optional alternating key-value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Entry.WithFields(parseKeysAndValues(keysAndValues...)).Error(msg)
}

// Debug logs a debug message with optional alternating key-value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Entry.WithFields(parseKeysAndValues(keysAndValues...)).Debug(msg)
}

func parseKeysAndValues(keysAndValues ...interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprintf("%v", keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
