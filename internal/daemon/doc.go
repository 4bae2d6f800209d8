// Package daemon runs the long-lived bookclub process and its HTTP API.
//
// It wires the bookclub services behind a chi router with flock-based
// locking to prevent multiple instances against one data directory. The API
// authenticates with an optional bearer token and identifies the acting reader
// through the X-Reader-ID header. Request counts and latencies are exported on
// /metrics.
//
// Keep domain rules out of this package: handlers decode, call one service
// operation and encode the result or error envelope.
package daemon
