// Package migrations embeds the goose SQL migrations of the lexes schema.
package migrations

import "embed"

// FS contains the embedded migrations.
//
//go:embed *.sql
var FS embed.FS
