// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// New builds a structured logger. format is "text" (colorful, human oriented) or
// "json". A nil writer logs to stderr so stdout stays clean for command output.
func New(level, format string, w io.Writer) (*pterm.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	logger := pterm.DefaultLogger.
		WithLevel(lvl).
		WithWriter(w).
		WithTime(true)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logger = logger.WithFormatter(pterm.LogFormatterColorful)
	case "json":
		logger = logger.WithFormatter(pterm.LogFormatterJSON)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected text or json)", format)
	}
	return logger, nil
}

// Discard returns a logger that drops everything. Used by tests and by library
// callers that did not supply a logger.
func Discard() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled).WithWriter(io.Discard)
}

// ParseLevel maps a level name to a pterm log level.
func ParseLevel(level string) (pterm.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace, nil
	case "debug":
		return pterm.LogLevelDebug, nil
	case "", "info":
		return pterm.LogLevelInfo, nil
	case "warn", "warning":
		return pterm.LogLevelWarn, nil
	case "error":
		return pterm.LogLevelError, nil
	case "off", "disabled", "none":
		return pterm.LogLevelDisabled, nil
	default:
		return pterm.LogLevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
