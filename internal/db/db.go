// Package db embeds the PostgreSQL schema migrations.
package db

import "embed"

// Migrations holds the goose migrations under "migrations/".
//
//go:embed migrations/*.sql
var Migrations embed.FS
