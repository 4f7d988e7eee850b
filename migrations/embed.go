// Package migrations embeds the PostgreSQL schema of the purchasing service as
// golang-migrate <version>_<name>.up.sql / .down.sql pairs.
package migrations

import "embed"

// Files holds the migration pairs.
//
//go:embed *.sql
var Files embed.FS
