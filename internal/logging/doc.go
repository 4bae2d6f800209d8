// Package logging builds the slog loggers used by the daemon and the CLI.
//
// Console output puts the component first and folds group, book and reader
// ids into a short {group=... book=... reader=...} scope so a formation or a
// membership change reads on one line. JSON output keeps every attribute as a
// plain key for machine filtering.
package logging
