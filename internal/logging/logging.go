// Package logging configures the process-wide slog logger.
//
// While the dashboard is running the terminal belongs to bubbletea, so
// records go to a file under the config directory. Plain CLI commands and
// the dev server log to stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Level returns the slog level for the debug flag.
func Level(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// New returns a text logger writing to w.
func New(w io.Writer, debug bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level(debug)}))
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *slog.Logger {
	return New(io.Discard, false)
}

// InitFile points the default logger at path, creating parent directories.
// The returned closer must be called on shutdown.
func InitFile(path string, debug bool) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := New(f, debug)
	slog.SetDefault(logger)
	return logger, f, nil
}

// InitStderr points the default logger at stderr.
func InitStderr(debug bool) *slog.Logger {
	logger := New(os.Stderr, debug)
	slog.SetDefault(logger)
	return logger
}
