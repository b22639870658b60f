// Package migrations embeds the board database schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
