// Package queue manages each reader's list of books they want to read.
//
// An enqueue appends the book, bumps the book's demand through the ledger
// and then asks the matching engine to evaluate the book. The enqueue is
// committed before evaluation starts, so a failed formation never undoes it.
// Dequeue is idempotent and only releases demand for a row it removed.
package queue
