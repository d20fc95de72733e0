// Package migrations embeds the Postgres schema for intake records.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
