// Package logging builds the structured logger shared by the CLI and the
// batch generators.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log level, encoding and destination
type Options struct {
	Level  string
	Format string

	// File, when set, sends output to a rotating log file
	File       string
	MaxSizeMB  int
	MaxAgeDays int

	// Output overrides stderr when File is empty
	Output io.Writer
}

// ParseLevel maps debug, info, warn and error to slog levels
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger and a function that releases its destination
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	switch {
	case opts.File != "":
		rotating := &lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  opts.MaxSizeMB, // megabytes
			MaxAge:   opts.MaxAgeDays,
		}
		w = rotating
		closer = rotating.Close
	case opts.Output != nil:
		w = opts.Output
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		closer()
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return slog.New(handler), closer, nil
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
