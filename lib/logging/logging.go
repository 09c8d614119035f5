// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the structured logger the print shop binaries
// share. When stderr is a terminal it uses slog.TextHandler for
// human-readable output; otherwise slog.JSONHandler, so records from a
// service manager or container runtime stay machine-parseable.
//
// Coupon codes and disclosed secrets are never passed to a logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger returns a logger writing to stderr at the given level.
func NewLogger(level slog.Level) *slog.Logger {
	return New(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level)
}

// New returns a logger writing to w. text selects the human-readable
// handler.
func New(w io.Writer, text bool, level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if text {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// ParseLevel accepts the slog level names (debug, info, warn, error),
// case-insensitively, with optional offsets such as "info+2".
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("logging: invalid level %q: %w", name, err)
	}
	return level, nil
}
