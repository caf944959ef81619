package store

import "embed"

// Migrations holds the goose SQL migrations for the postgres backend.
//
//go:embed migrations/*.sql
var Migrations embed.FS
