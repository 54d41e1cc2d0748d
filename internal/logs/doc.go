// Package logs reads the daemon's run log for `camwatch logs`.
//
// Read returns the last N lines or everything after a byte offset; Follow
// polls for appended lines until its context ends. Both accept a line filter
// so the CLI can narrow output to one camera in either log format.
package logs
