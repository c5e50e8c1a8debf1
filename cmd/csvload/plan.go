package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AndriyPolukhin/app-aiv/internal/csvread"
	"github.com/AndriyPolukhin/app-aiv/internal/exitcode"
	"github.com/AndriyPolukhin/app-aiv/internal/ingest"
	"github.com/AndriyPolukhin/app-aiv/internal/logging"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and strategy report (no writes)",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Path to CSV file (required)")
	f.StringVar(&cfg.Destination, "dest", "", "Destination name (required)")
	f.StringVar(&cfg.OptionsFile, "config", "", "YAML options file")
	_ = planCmd.MarkFlagRequired("file")
	_ = planCmd.MarkFlagRequired("dest")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log, err := logging.Setup(cfg.LogFormat, "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitcode.UsageError)
	}

	if cfg.OptionsFile != "" {
		if err := cfg.LoadFromFile(cfg.OptionsFile); err != nil {
			log.Error().Err(err).Msg("options file rejected")
			os.Exit(exitcode.UsageError)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	dest, ok := model.DestinationByName(cfg.Destination)
	if !ok {
		log.Error().Str("dest", cfg.Destination).Msg("unknown destination")
		os.Exit(exitcode.ValidationError)
	}

	fingerprint, err := csvread.Fingerprint(cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to fingerprint file")
		os.Exit(exitcode.ValidationError)
	}
	header, err := csvread.ReadHeader(cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to read header")
		os.Exit(exitcode.ValidationError)
	}
	lines, err := csvread.CountLines(cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to count lines")
		os.Exit(exitcode.ValidationError)
	}

	caps := store.CapabilitiesFor(cfg.DSN)
	decision, err := ingest.Decide(cfg.FilePath, caps, ingest.NewConfig(cfg.Options))
	if err != nil {
		log.Error().Err(err).Msg("failed to stat file")
		os.Exit(exitcode.ValidationError)
	}
	missing, extra := dest.CheckHeader(header)

	fmt.Println("=== csvload plan ===")
	fmt.Printf("File:        %s\n", cfg.FilePath)
	fmt.Printf("xxh3:        %s\n", fingerprint)
	fmt.Printf("Size:        %.2f MB\n", decision.FileSizeMB)
	fmt.Printf("Data lines:  %d\n", max(lines-1, 0))
	fmt.Printf("Destination: %s (table %s)\n", dest.Name, dest.Table)
	fmt.Printf("Header:      %s\n", strings.Join(header, ", "))
	if cfg.DSN == "" {
		fmt.Printf("Store:       unknown (no DSN), assuming %s\n", caps.Dialect)
	} else {
		fmt.Printf("Store:       %s (bulk copy: %v)\n", caps.Dialect, caps.BulkCopy)
	}
	fmt.Printf("Strategy:    %s\n", decision.Strategy)
	fmt.Printf("Batch size:  %d\n", decision.Config.BatchSize)
	if decision.Strategy == ingest.StrategyChunked {
		chunks := ingest.PlanChunks(max(lines-1, 0), decision.Config.WorkerCount)
		fmt.Printf("Chunks:      %d workers\n", len(chunks))
		for _, c := range chunks {
			if c.Len() > 0 {
				fmt.Printf("  #%d lines [%d, %d)\n", c.Index, c.StartLine, c.EndLine)
			}
		}
	}
	if len(extra) > 0 {
		fmt.Printf("Ignored columns: %s\n", strings.Join(extra, ", "))
	}
	if len(missing) > 0 {
		fmt.Printf("Missing required columns: %s\n", strings.Join(missing, ", "))
		os.Exit(exitcode.ValidationError)
	}
	fmt.Println("Header check: OK")
	return nil
}
