package migrations

import "embed"

// FS contains embedded SQLite migrations for save data.
//
//go:embed *.sql
var FS embed.FS
