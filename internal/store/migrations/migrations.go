// Package migrations embeds the goose migrations for the SQL key/value store,
// one directory per dialect.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS
