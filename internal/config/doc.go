// Package config loads, normalizes, and validates bookclub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BOOKCLUB_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: the data directory, group sizing, interaction limits, and the
// notification topic are all discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
