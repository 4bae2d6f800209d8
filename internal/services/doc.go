// Package services defines shared utilities consumed by every bookclub
// component.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper, and Kind which reduces
//     any error to the machine-readable kind reported by the API and CLI.
//   - Context helpers that stamp reader, group, and book identifiers plus
//     correlation identifiers for logging.
//
// Use these helpers when adding new operations so failure reporting and
// observability stay uniform across the queue, matching, and group code.
package services
