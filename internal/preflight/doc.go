// Package preflight provides readiness checks for the paths and services
// bookclub depends on.
//
// The daemon runs RunAll before binding its API and refuses to start when a
// directory check fails. `bookclub status` shows the same results even when
// no daemon is running. The ntfy check only runs when a topic is configured.
package preflight
