// Package logging assembles the structured slog loggers used across minder.
//
// It owns the console and JSON handlers, centralizes level parsing, and
// exposes small attribute helpers so components emit log lines with a
// consistent shape. A no-op logger is provided for tests and wiring code
// that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup.
package logging
