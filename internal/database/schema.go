package database

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed migrations.sql
var migrationsSQL string

// Migrate creates any missing tables and indexes. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, migrationsSQL); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
