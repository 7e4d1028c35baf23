// Package logging configures the structured logger shared by the external
// collaborators (generator, adapter, nemesis, cmd). The analysis core
// (history, resolver, detector, dsg, cycles, anomaly, render) never imports
// this package: it is pure and side-effect free, so it is never handed a
// logger at all.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New builds the process logger. By default it emits structured JSON to w
// (or os.Stderr if w is nil) at Info level; verbose selects Debug level and
// a human-readable text handler, matching the CLI's -v/--verbose flag.
func New(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if verbose {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record, for tests and for the
// core's optional callers that opt out of logging entirely.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
