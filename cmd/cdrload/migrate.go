package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/cdrload/internal/config"
	"github.com/gyeh/cdrload/internal/db"
	"github.com/gyeh/cdrload/internal/exitcode"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply Postgres schema migrations",
	Long:  "Applies the embedded SQL migrations. The sqlite driver creates its tables on open and needs no migration.",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if cfg.Store.Driver != config.DriverPostgres {
		log.Error().Str("driver", cfg.Store.Driver).Msg("migrate requires the postgres driver")
		os.Exit(exitcode.UsageError)
	}
	if err := cfg.ValidateStore(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ConfigError)
	}

	pool, err := db.NewPool(ctx, cfg.Store.DSN, 1)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.RuntimeError)
	}

	log.Info().Msg("all migrations applied successfully")
	return nil
}
