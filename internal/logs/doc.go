// Package logs reads the daemon's log files for `bookclub logs`.
//
// CurrentPath resolves the bookclub.log pointer the daemon refreshes on every
// start. Last returns the final lines of a file with bounded memory, and
// Follow polls for appended lines until its context ends, starting over when
// the file shrinks because a new run replaced it.
package logs
