package migrations

import "embed"

// FS contains the embedded SQLite migrations of the device registry.
//
//go:embed *.sql
var FS embed.FS
