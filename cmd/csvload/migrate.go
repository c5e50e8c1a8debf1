package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AndriyPolukhin/app-aiv/internal/db"
	"github.com/AndriyPolukhin/app-aiv/internal/exitcode"
	"github.com/AndriyPolukhin/app-aiv/internal/logging"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log, err := logging.Setup(cfg.LogFormat, "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitcode.UsageError)
	}
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn, DATABASE_URL or DB_HOST/DB_NAME is required")
		os.Exit(exitcode.UsageError)
	}

	st, err := store.Open(ctx, cfg.DSN, 0)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer st.Close()

	if err := db.ApplyMigrations(ctx, st, st.Capabilities().Dialect, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.DBConnError)
	}

	log.Info().Msg("all migrations applied successfully")
	return nil
}
