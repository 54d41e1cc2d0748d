// Package logging assembles structured slog loggers and formatting helpers used
// across camwatch.
//
// It owns the console and JSON handlers, an optional JSON events copy fanned
// out next to the primary output, and helpers that tag lines with component,
// camera, and capture cycle fields. NewNop gives tests and optional wiring a
// logger that can never fail.
package logging
