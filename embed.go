// Package repsync embeds assets the binaries need at runtime: the local
// store schema migrations and the offline application shell.
package repsync

import "embed"

// MigrationsFS holds the SQL migrations for the local store.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// WebFS holds the offline application shell and bundled static assets
// the mediation agent warms into the cache on install.
//
//go:embed web
var WebFS embed.FS
