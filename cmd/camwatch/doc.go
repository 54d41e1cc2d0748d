// Package main hosts the camwatch CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground and
// translates every other invocation into IPC calls against it: camera
// lifecycle, live view zoom and pan, captures and the journal. Configuration
// resolution and socket discovery live here so subcommands stay small.
package main
