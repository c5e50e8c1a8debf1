// Package sql embeds the DDL for each supported dialect.
package sql

import "embed"

// Migrations holds migrations/<dialect>/NNN_name.sql files.
//
//go:embed migrations
var Migrations embed.FS
