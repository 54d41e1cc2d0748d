// Package notifications delivers camera health and capture events to ntfy.
//
// When no topic is configured a no-op implementation is returned, so callers
// never need to check whether notifications are enabled. Per-event toggles in
// config.toml decide which of the restart, stale and capture messages are sent.
package notifications
