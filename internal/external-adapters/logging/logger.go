// Package logging backs the domain Logger with logrus.
package logging

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// Logger implements interfaces.Logger on top of a logrus logger
type Logger struct {
	entry *log.Entry
}

var _ interfaces.Logger = (*Logger)(nil)

// Options configures a Logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// New creates a Logger writing to opts.Output
func New(opts Options) (*Logger, error) {
	base := log.New()
	if opts.Output != nil {
		base.SetOutput(opts.Output)
	}

	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	base.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		base.SetFormatter(&log.TextFormatter{
			DisableTimestamp: true,
			DisableQuote:     true,
		})
	case "json":
		base.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q: expected text or json", opts.Format)
	}

	return &Logger{entry: log.NewEntry(base)}, nil
}

// With returns a logger that adds fields to every entry
func (l *Logger) With(fields ...interfaces.Field) *Logger {
	return &Logger{entry: l.entry.WithFields(toFields(fields))}
}

// Debug implements interfaces.Logger
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.entry.WithFields(toFields(fields)).Debug(msg)
}

// Info implements interfaces.Logger
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.entry.WithFields(toFields(fields)).Info(msg)
}

// Warn implements interfaces.Logger
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.entry.WithFields(toFields(fields)).Warn(msg)
}

// Error implements interfaces.Logger
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.entry.WithFields(toFields(fields)).Error(msg)
}

func toFields(fields []interfaces.Field) log.Fields {
	out := make(log.Fields, len(fields))
	for _, f := range fields {
		if f.Key == "error" {
			out[log.ErrorKey] = f.Value
			continue
		}
		out[f.Key] = f.Value
	}
	return out
}
