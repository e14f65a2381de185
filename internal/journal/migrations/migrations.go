package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the journal schema. Each migration file is named <timestamp>_<name>.go.
var Migrations = migrate.NewMigrations()
