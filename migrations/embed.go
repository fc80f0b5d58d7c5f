// Package migrations embeds goose SQL migrations applied on server startup.
package migrations

import "embed"

// FS holds all *.sql migrations in this directory.
//
//go:embed *.sql
var FS embed.FS
