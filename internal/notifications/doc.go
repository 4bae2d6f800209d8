// Package notifications publishes reading-group events to ntfy.
//
// The ntfy transport sits behind a circuit breaker so a failing server stops
// costing request latency after a few consecutive errors. When no topic is
// configured NewService returns a no-op implementation. Callers treat every
// error as advisory: group operations never fail because a push did.
package notifications
