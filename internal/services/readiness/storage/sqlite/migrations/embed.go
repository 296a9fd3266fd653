package migrations

import "embed"

// FS contains embedded SQLite migrations for readiness key-value storage.
//
//go:embed *.sql
var FS embed.FS
