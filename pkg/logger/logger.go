// Package logger provides structured logging for taskforge services.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePrefix string `yaml:"file_prefix"`
}

// Logger wraps a logrus entry so call sites can chain contextual fields.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger from configuration. Unknown levels fall back to info.
func New(cfg LoggingConfig) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	l.SetOutput(resolveOutput(cfg))

	return &Logger{entry: logrus.NewEntry(l)}
}

// NewDefault creates an info-level text logger tagged with a component name.
// Services use it when no logger is injected.
func NewDefault(component string) *Logger {
	log := New(LoggingConfig{Level: "info", Format: "text"})
	return log.WithField("component", component)
}

func resolveOutput(cfg LoggingConfig) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "taskforge"
		}
		path := prefix + ".log"
		f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

// WithField returns a logger with an additional field attached.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a logger with a set of fields attached.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithError returns a logger with the error attached under the "error" key.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(args ...any) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...any)  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...any) { l.entry.Error(args...) }

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
