// Package migrations holds the SQL schema of the trail catalog.
package migrations

import "embed"

// FS holds every migration. NNN_name.sql applies a step and
// NNN_name.down.sql reverts it.
//
//go:embed *.sql
var FS embed.FS
