// Package migrations embeds the SQL migration files.
package migrations

import "embed"

// FS holds the versioned migration files consumed by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
