package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation defaults.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 28
)

// Options configures New.
type Options struct {
	// Verbose selects Debug level; otherwise Warn.
	Verbose bool

	// JSON selects the JSON handler instead of text.
	JSON bool

	// Console receives log output. Nil means os.Stderr.
	Console io.Writer

	// File, when set, also writes logs to a size-rotated file.
	File string

	// MaxSizeMB is the file size that triggers rotation.
	MaxSizeMB int

	// MaxBackups is how many rotated files are kept.
	MaxBackups int

	// Redactor masks registered values. Nil creates an empty one.
	Redactor *Redactor
}

// nopCloser is returned when there is no file to close.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a secure logger writing to the console and, optionally, to a
// rotating file. The returned Closer closes the file and must be called
// when logging is done.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var w io.Writer = console
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		fileLogger := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, DefaultMaxBackups),
			MaxAge:     DefaultMaxAgeDays,
			LocalTime:  true,
		}
		w = io.MultiWriter(console, fileLogger)
		closer = fileLogger
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOptions(opts.Verbose))
	} else {
		handler = slog.NewTextHandler(w, handlerOptions(opts.Verbose))
	}

	return slog.New(NewSecureHandler(handler, opts.Redactor)), closer, nil
}

// RedactorOf returns the Redactor behind a logger created by this package,
// or nil for any other logger.
func RedactorOf(logger *slog.Logger) *Redactor {
	if logger == nil {
		return nil
	}
	if h, ok := logger.Handler().(*SecureHandler); ok {
		return h.Redactor()
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
