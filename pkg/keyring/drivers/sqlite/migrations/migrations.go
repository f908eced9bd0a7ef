// Package migrations embeds the keyring schema migration files.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
