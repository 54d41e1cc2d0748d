// Package preflight provides readiness checks for the directories and camera
// sources camwatch depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll results at startup so a missing device node or an
//     unreachable stream shows up before the first capture cycle backs off.
//   - The CLI "camwatch status" command renders the same results as a table.
//
// Checks never fail the daemon; a camera that is not ready yet is retried by
// its capture loop.
package preflight
