// Package migrations contains embedded SQL migrations for the hub SQLite store.
package migrations

import "embed"

// FS holds the hub schema migrations.
//
//go:embed *.sql
var FS embed.FS
