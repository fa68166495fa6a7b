// Package migrations embeds the SQL migrations so the binaries run from any working directory.
package migrations

import "embed"

const PostgresDir = "postgres"

//go:embed postgres/*.sql
var Postgres embed.FS
