// Package migrations embeds the SQL schema for the profile table so the
// binary can migrate a database without the source tree.
package migrations

import "embed"

// FS holds the golang-migrate up and down scripts.
//
//go:embed *.sql
var FS embed.FS
