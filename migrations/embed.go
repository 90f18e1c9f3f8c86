// Package migrations embeds the SQL schema.
package migrations

import "embed"

// Files holds the versioned up/down scripts.
//
//go:embed *.sql
var Files embed.FS
