// Package api defines the wire-format types shared by the HTTP server and
// the CLI's --json output, plus converters from store records.
//
// DTOs use camelCase JSON tags for the browser client. Enums (group status,
// member status) are lowercase strings and timestamps are RFC3339 with
// milliseconds in UTC.
//
// Errors travel in one envelope, {"success":false,"error":{"kind","message"}},
// where kind is the services error kind and the HTTP status comes from
// StatusForError.
package api
