package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/cdrload/internal/exitcode"
	"github.com/gyeh/cdrload/internal/ingest"
	"github.com/gyeh/cdrload/internal/store"
)

var watch bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the input directory until interrupted",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&watch, "watch", false, "Also wake up when a file is created in the input directory")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("watch") {
		cfg.Watch = watch
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, &cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("store open failed")
		os.Exit(exitcode.DBConnError)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()

	ing := ingest.New(&cfg, ingest.NewPool(cfg.Workers), st.Records, st.Audit, log)

	var watchDir string
	if cfg.Watch {
		watchDir = cfg.InputDir
	}
	sched := ingest.NewScheduler(ing, cfg.Interval, watchDir, log)
	log.Info().
		Str("input", cfg.InputDir).
		Str("processed", cfg.ProcessedDir).
		Str("error", cfg.ErrorDir).
		Int("chunk_size", cfg.ChunkSize).
		Int("workers", cfg.Workers).
		Msg("cdrload starting")

	if err := sched.Run(ctx); err != nil {
		log.Error().Err(err).Msg("scheduler failed")
		os.Exit(exitcode.RuntimeError)
	}
	log.Info().Msg("shutdown complete")
	return nil
}
