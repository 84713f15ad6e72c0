package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

var logLevels = map[LogLevel]int{
	LogLevelDebug: 1,
	LogLevelInfo:  2,
	LogLevelWarn:  3,
	LogLevelError: 4,
}

type Logger interface {
	Log(level LogLevel, format string, args ...interface{})
}

type DefaultLogger struct {
	logMode LogLevel
	logger  *log.Logger
}

// ParseLevel accepts a level name in any case.
func ParseLevel(level string) (LogLevel, error) {
	l := LogLevel(strings.ToUpper(strings.TrimSpace(level)))
	if _, ok := logLevels[l]; !ok {
		return "", fmt.Errorf("unknown log level: %q", level)
	}
	return l, nil
}

// NewDefaultLogger logs to stderr and appends to logFile. Stdout is left to
// the codec output.
func NewDefaultLogger(mode LogLevel, logFile string) (*DefaultLogger, error) {
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, err
	}

	return NewLogger(mode, io.MultiWriter(os.Stderr, file)), nil
}

func NewLogger(mode LogLevel, w io.Writer) *DefaultLogger {
	return &DefaultLogger{
		logMode: mode,
		logger:  log.New(w, "", log.LstdFlags),
	}
}

func (l *DefaultLogger) Log(level LogLevel, format string, args ...interface{}) {
	currentLevel := logLevels[l.logMode]
	messageLevel := logLevels[level]

	if messageLevel >= currentLevel {
		l.logger.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
	}
}

type discardLogger struct{}

func (discardLogger) Log(LogLevel, string, ...interface{}) {}

// Discard drops every message.
var Discard Logger = discardLogger{}
