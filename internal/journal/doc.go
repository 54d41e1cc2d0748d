// Package journal persists saved captures and camera lifecycle events in a
// small SQLite database under the state directory.
//
// The journal is an audit trail, not a source of truth for the daemon: a
// failed write is logged by callers and never blocks capture or save paths.
package journal
