// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Camera
// status and journal rows travel as the daemon's own JSON shapes so the CLI
// and the HTTP API render identical data. Errors cross the socket as strings;
// callers that need the failure category read the Kind field carried on
// camera responses.
package ipc
