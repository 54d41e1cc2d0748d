// Package services defines the error taxonomy and context helpers shared by
// the capture engine and its outer surfaces.
//
// Key responsibilities:
//   - Sentinel markers (device open, quality, frame read, stale connection,
//     save I/O, configuration) plus the Wrap helper that keeps camera and
//     operation context on every failure.
//   - SaveError, which reports why a capture write failed without losing the
//     ErrSaveIO classification.
//   - Context helpers that stamp camera names, capture cycle IDs, and
//     correlation identifiers for logging.
package services
