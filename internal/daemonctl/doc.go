// Package daemonctl controls a bookclub daemon from another process: it
// launches `bookclub serve` detached, probes the single-instance lock, reads
// the pid file, and queries the daemon's HTTP API for status.
package daemonctl
