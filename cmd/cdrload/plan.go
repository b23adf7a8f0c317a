package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/cdrload/internal/exitcode"
	"github.com/gyeh/cdrload/internal/normalize"
)

// maxLineBytes matches the ingest line limit.
const maxLineBytes = 1 << 20

var planFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run parse of one file (no writes, no moves)",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFile, "file", "", "Path to CDR file (required)")
	_ = planCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if cfg.ChunkSize < 1 {
		log.Error().Int("chunk_size", cfg.ChunkSize).Msg("chunk_size must be at least 1")
		os.Exit(exitcode.ConfigError)
	}

	sha, size, err := normalize.FileHash(planFile)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash file")
		os.Exit(exitcode.UsageError)
	}

	f, err := os.Open(planFile)
	if err != nil {
		log.Error().Err(err).Msg("failed to open file")
		os.Exit(exitcode.UsageError)
	}
	defer f.Close()

	parser := normalize.NewParser(cfg.TimestampLayouts())
	reasons := make(map[string]int64)
	var read, accepted int64
	var firstReject string

	lr := normalize.NewLineReader(f, maxLineBytes)
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil && !errors.Is(err, normalize.ErrLineTooLong) {
			log.Error().Err(err).Int64("line", read+1).Msg("read failed")
			os.Exit(exitcode.IngestError)
		}
		read++
		if err == nil {
			_, err = parser.ParseLine(line)
		}
		if err != nil {
			reasons[rejectReason(err)]++
			if firstReject == "" {
				firstReject = fmt.Sprintf("line %d: %v", read, err)
			}
			continue
		}
		accepted++
	}

	chunks := (accepted + int64(cfg.ChunkSize) - 1) / int64(cfg.ChunkSize)

	fmt.Println("=== cdrload plan ===")
	fmt.Printf("File:       %s\n", planFile)
	fmt.Printf("SHA-256:    %s\n", sha)
	fmt.Printf("Size:       %d bytes\n", size)
	fmt.Printf("Lines:      %d\n", read)
	fmt.Printf("Accepted:   %d\n", accepted)
	fmt.Printf("Rejected:   %d\n", read-accepted)
	for reason, n := range reasons {
		fmt.Printf("  %-24s %d\n", reason, n)
	}
	if firstReject != "" {
		fmt.Printf("First reject: %s\n", firstReject)
	}
	fmt.Printf("Chunks:     %d of up to %d records\n", chunks, cfg.ChunkSize)
	return nil
}

func rejectReason(err error) string {
	var le *normalize.LineError
	switch {
	case errors.Is(err, normalize.ErrInsufficientFields):
		return "insufficient fields"
	case errors.Is(err, normalize.ErrLineTooLong):
		return "line too long"
	case errors.As(err, &le):
		return le.Field + ": " + le.Err.Error()
	default:
		return "other"
	}
}
