package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// LogLevel type
type LogLevel int

// Log levels
const (
	INFO LogLevel = iota
	WARNING
	DEBUG
	ERROR
)

// String returns the level name as it is printed in front of every line
func (l LogLevel) String() string {
	switch l {
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case DEBUG:
		return "DEBUG"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "info", "Info", "INFO":
		return INFO
	case "warning", "Warning", "WARNING", "warn", "WARN":
		return WARNING
	case "debug", "Debug", "DEBUG":
		return DEBUG
	case "error", "Error", "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger struct
type Logger struct {
	logger   *log.Logger
	logLevel LogLevel
}

// NewLogger creates a logger writing to stderr, stdout is kept for command output
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(level string, w io.Writer) *Logger {
	return &Logger{
		logger:   log.New(w, "", log.Ldate|log.Ltime),
		logLevel: ParseLogLevel(level),
	}
}

func (l *Logger) print(level LogLevel, msg string) {
	if l.logLevel <= level {
		l.logger.Println(level.String() + ": " + msg)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.print(INFO, msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...any) {
	l.print(INFO, fmt.Sprintf(format, args...))
}

// Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.print(WARNING, msg)
}

// Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...any) {
	l.print(WARNING, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.print(DEBUG, msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...any) {
	l.print(DEBUG, fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.print(ERROR, msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...any) {
	l.print(ERROR, fmt.Sprintf(format, args...))
}
