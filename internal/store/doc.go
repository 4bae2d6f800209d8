// Package store persists books, readers, queues, and reading groups in SQLite.
//
// Store owns the connection, the embedded goose migrations, and the busy-retry
// policy. Every record operation hangs off Tx so callers can compose several of
// them into one all-or-nothing unit with Update; View runs the same operations
// outside a transaction for read paths.
//
// The database is opened with immediate transactions and a single pooled
// connection, so write transactions in one process never interleave and
// separate processes are serialized by SQLite's write lock. Never call View or
// Update from inside an Update callback: the callback already owns the only
// connection.
//
// Lookups return (nil, nil) when a row does not exist; callers decide whether a
// missing row is an error.
package store
