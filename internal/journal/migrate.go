package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/victornm/quizdesk/internal/journal/migrations"
)

// Migrate applies the journal schema to the database at dsn and returns the applied group, if any.
func Migrate(ctx context.Context, dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("journal: postgres dsn not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, migrations.Migrations)
	if err := m.Init(ctx); err != nil {
		return "", fmt.Errorf("journal: init migrations: %w", err)
	}

	group, err := m.Migrate(ctx)
	if err != nil {
		return "", fmt.Errorf("journal: migrate: %w", err)
	}

	if group.IsZero() {
		return "", nil
	}
	return group.String(), nil
}
