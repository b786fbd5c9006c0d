// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide slog logger.
//
// The TUI owns the terminal, so log output goes to a file under the
// workbench state directory rather than stderr. Flip to debug level with
// SetVerbose before the first log call.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// LogLevel is the process-wide level, adjustable at runtime.
var LogLevel slog.LevelVar

// Setup installs the default slog logger writing to logPath and returns a
// closer for the underlying file. When logPath is empty the logger writes
// to stderr (console mode, where the terminal is not owned by a TUI).
func Setup(logPath string) (func() error, error) {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closer = f.Close
	}

	lg := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      &LogLevel,
		NoColor:    logPath != "", // plain text in files
		TimeFormat: "2006 Jan 02 15:04:05",
	}))
	slog.SetDefault(lg)
	return closer, nil
}

// SetVerbose switches the process-wide level to debug.
func SetVerbose(verbose bool) {
	if verbose {
		LogLevel.Set(slog.LevelDebug)
	} else {
		LogLevel.Set(slog.LevelInfo)
	}
}
