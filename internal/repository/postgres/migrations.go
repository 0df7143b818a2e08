package postgres

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"

	"github.com/utafrali/PackStore/pkg/database"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migrate applies the cart and order schema.
func Migrate(ctx context.Context, db database.DBTX, l *slog.Logger) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	return database.RunMigrations(ctx, db, sub, l)
}
