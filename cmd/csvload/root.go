package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AndriyPolukhin/app-aiv/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "csvload",
	Short: "Bulk CSV → Postgres/SQLite loader",
	Long: "Loads large CSV exports (engineers, teams, projects, repositories, issues, commits) " +
		"into a relational store, choosing between streaming batches, parallel chunks and native COPY.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: load .env: %v\n", err)
		}
		cfg.ResolveDSN()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", "", "Postgres URL or SQLite path (or set DATABASE_URL / DB_HOST, DB_NAME, ...)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
}
