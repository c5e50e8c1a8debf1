package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/rs/zerolog"

	embedsql "github.com/AndriyPolukhin/app-aiv/internal/sql"
)

// Execer runs a (possibly multi-statement) SQL script.
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// ApplyMigrations runs the embedded migrations for dialect in filename
// order. All DDL uses IF NOT EXISTS so migrations are idempotent.
func ApplyMigrations(ctx context.Context, ex Execer, dialect string, log zerolog.Logger) error {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(embedsql.Migrations, dir)
	if err != nil {
		return fmt.Errorf("read migrations for %s: %w", dialect, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied := 0
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		name := entry.Name()
		data, err := fs.ReadFile(embedsql.Migrations, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		log.Info().Str("migration", name).Str("dialect", dialect).Msg("applying migration")
		if err := ex.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		applied++
	}

	log.Info().Int("count", applied).Msg("all migrations applied")
	return nil
}
