package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/cdrload/internal/exitcode"
	"github.com/gyeh/cdrload/internal/ingest"
	"github.com/gyeh/cdrload/internal/model"
	"github.com/gyeh/cdrload/internal/store"
)

var drainAll bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run a single intake cycle (or drain the input directory with --all)",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&drainAll, "all", false, "Keep ticking until no file is left")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ConfigError)
	}

	st, err := store.Open(ctx, &cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("store open failed")
		os.Exit(exitcode.DBConnError)
	}
	defer st.Close()

	ing := ingest.New(&cfg, ingest.NewPool(cfg.Workers), st.Records, st.Audit, log)

	res := drain(ctx, ing, drainAll, os.Stdout)
	switch {
	case res.openFailed:
		// the file is still in place; retrying now would hit the same error
		_ = st.Close()
		os.Exit(exitcode.DBConnError)
	case res.files == 0:
		fmt.Println("No file to ingest")
	}
	if res.failed > 0 || res.stuck != "" {
		_ = st.Close()
		os.Exit(exitcode.IngestError)
	}
	return nil
}

// ticker runs one intake cycle.
type ticker interface {
	Tick(ctx context.Context) (*model.TickSummary, error)
}

type drainResult struct {
	files      int
	failed     int
	openFailed bool
	stuck      string // file left in the input dir, drain stopped on it
}

// drain runs ticks until no file is left (or once when all is false). It stops
// early when a file stays in the input directory, since the next tick would
// select it again.
func drain(ctx context.Context, t ticker, all bool, out io.Writer) drainResult {
	var res drainResult
	seen := make(map[string]bool)
	for {
		summary, err := t.Tick(ctx)
		if summary != nil {
			res.files++
			printSummary(out, summary)
		}
		if err != nil {
			var pe *ingest.PipelineError
			if errors.As(err, &pe) {
				log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("ingest failed")
				if pe.Phase == "open" {
					res.openFailed = true
					return res
				}
			} else {
				log.Error().Err(err).Msg("ingest failed")
			}
			res.failed++
		}
		if summary == nil || !all {
			return res
		}
		if summary.RelocatedTo == "" || seen[summary.FilePath] {
			log.Error().Str("file", summary.FilePath).Msg("file was not relocated, stopping drain")
			res.stuck = summary.FilePath
			return res
		}
		seen[summary.FilePath] = true
	}
}

func printSummary(out io.Writer, s *model.TickSummary) {
	fmt.Fprintf(out, "%s: %s, %d lines read, %d records, %d rejected, %d chunks (%d failed) → %s (%.1fs)\n",
		s.FilePath, s.Status, s.LinesRead, s.RecordsQueued, s.LinesRejected,
		s.Chunks, s.FailedChunks, s.RelocatedTo, s.DurationTotal.Seconds())
}
