// Package daemon coordinates the long-running camwatch process.
//
// It builds one session per configured camera and wires them to the shared
// resource monitor, the watchdog, the capture journal, notifications and
// metrics, all behind a flock-based single-instance lock. The daemon also owns
// the udev hotplug monitor and the HTTP API.
//
// Keep orchestration logic here: capture, pacing and persistence live in their
// own packages while the daemon focuses on startup, shutdown and routing
// operator requests to the right session.
package daemon
