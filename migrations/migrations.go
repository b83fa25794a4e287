// Package migrations embeds the PostgreSQL schema files applied by `hms-scheduler migrate`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
