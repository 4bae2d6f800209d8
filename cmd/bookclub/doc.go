// Command bookclub runs the bookclub daemon and administers its data.
//
// `bookclub serve` hosts the HTTP API. Every other data command opens the
// SQLite store directly, so the CLI works whether or not a daemon is running;
// SQLite serializes writes between the two. Output is a table by default and
// the api package's JSON shapes with --json.
package main
