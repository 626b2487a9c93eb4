// Package migrations contains embedded SQL migration files for the change store.
package migrations

import "embed"

// Files exposes the compiled-in migration SQL files, one directory per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var Files embed.FS
