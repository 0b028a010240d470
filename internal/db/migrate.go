package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/cantonhealth/internal/sql"
)

// ApplyMigrations runs the embedded layers schema migrations in filename
// order. DDL uses IF NOT EXISTS, so reapplying is a no-op.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	files, err := fs.Glob(embedsql.Migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no embedded migrations")
	}

	for _, file := range files {
		data, err := fs.ReadFile(embedsql.Migrations, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		log.Debug().Str("migration", path.Base(file)).Msg("applying migration")
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute migration %s: %w", path.Base(file), err)
		}
	}

	log.Info().Int("count", len(files)).Msg("migrations applied")
	return nil
}
