// Package migrations embeds the Postgres schema.
package migrations

import "embed"

// FS holds the migration files
//
//go:embed *.sql
var FS embed.FS
