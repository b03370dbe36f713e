// Package migrations embeds the goose SQL migrations for the Wayfarer schema.
// The server applies them at boot when MIGRATE_ON_START is set, and the
// integration tests apply them in TestMain.
package migrations

import "embed"

// FS holds all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
