// Package migrations holds the versioned schema for users, phone sessions and audit logs.
// Files follow golang-migrate naming: NNNNNN_name.up.sql with a matching .down.sql.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
