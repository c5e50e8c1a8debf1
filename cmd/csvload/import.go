package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/AndriyPolukhin/app-aiv/internal/config"
	"github.com/AndriyPolukhin/app-aiv/internal/csvread"
	"github.com/AndriyPolukhin/app-aiv/internal/exitcode"
	"github.com/AndriyPolukhin/app-aiv/internal/ingest"
	"github.com/AndriyPolukhin/app-aiv/internal/logging"
	"github.com/AndriyPolukhin/app-aiv/internal/metrics"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

var importFlags struct {
	batchSize     int
	maxConcurrent int
	workers       int
	chunkLines    int
	noTransaction bool
	noWorkers     bool
	noCopy        bool
	dryChunks     bool
	pgDSN         string
	logLevel      string
	progress      bool
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV file into a destination table",
	RunE:  runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Path to CSV file (required)")
	f.StringVar(&cfg.Destination, "dest", "", "Destination: engineer, team, project, repository, issue, commit (required)")
	f.StringVar(&cfg.OptionsFile, "config", "", "YAML options file")
	f.StringVar(&cfg.PushgatewayURL, "pushgateway", "", "Push run metrics to this Prometheus Pushgateway")
	f.IntVar(&importFlags.batchSize, "batch-size", 0, "Records per insert batch")
	f.IntVar(&importFlags.maxConcurrent, "max-concurrent", 0, "Maximum insert batches in flight")
	f.IntVar(&importFlags.workers, "workers", 0, "Chunk workers for large files")
	f.IntVar(&importFlags.chunkLines, "chunk-lines", 0, "Worker progress log interval, in lines")
	f.BoolVar(&importFlags.noTransaction, "no-transaction", false, "Commit each batch on its own")
	f.BoolVar(&importFlags.noWorkers, "no-workers", false, "Never use the parallel chunk loader")
	f.BoolVar(&importFlags.noCopy, "no-copy", false, "Never use native COPY")
	f.BoolVar(&importFlags.dryChunks, "dry-chunks", false, "Chunk loader validates and counts rows without writing")
	f.StringVar(&importFlags.pgDSN, "pg-dsn", "", "Separate connection string for native COPY")
	f.StringVar(&importFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.BoolVar(&importFlags.progress, "progress", false, "Show a progress bar (counts lines first)")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("dest")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if cfg.OptionsFile != "" {
		if err := cfg.LoadFromFile(cfg.OptionsFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(exitcode.UsageError)
		}
	}
	applyImportFlags(cmd, &cfg.Options)

	log, err := logging.Setup(cfg.LogFormat, cfg.Options.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitcode.UsageError)
	}
	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolved := ingest.NewConfig(cfg.Options)
	st, err := store.Open(ctx, cfg.DSN, int32(resolved.MaxConcurrentBatches+1))
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer st.Close()

	opts := []ingest.ImportOption{ingest.WithLogger(log)}
	var bar *progressbar.ProgressBar
	if importFlags.progress {
		bar = newProgressBar(cfg.FilePath, log)
		opts = append(opts, ingest.WithProgressFunc(func(m ingest.Metrics, _ int64) {
			_ = bar.Set64(m.SuccessfulRecords + m.FailedRecords)
		}))
	}

	m, err := ingest.ImportCSV(ctx, st, cfg.FilePath, cfg.Destination, cfg.Options, opts...)
	if bar != nil {
		_ = bar.Finish()
	}
	pushRunMetrics(ctx, log, m, err)

	if err != nil {
		pe := &ingest.PipelineError{Phase: phaseOf(err), Err: err}
		log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("import failed")
		os.Exit(exitCodeFor(err))
	}

	fmt.Printf("Import complete (%s): %d records, %d successful, %d failed, %d malformed lines (%.1fs, %.0f records/sec)\n",
		m.Strategy, m.TotalRecords, m.SuccessfulRecords, m.FailedRecords, m.MalformedRows,
		m.Duration().Seconds(), m.RecordsPerSecond())
	if m.FailedRecords > 0 || m.MalformedRows > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}

// applyImportFlags overrides file and default options with explicitly set
// flags.
func applyImportFlags(cmd *cobra.Command, o *config.Options) {
	f := cmd.Flags()
	if f.Changed("batch-size") {
		o.BatchSize = importFlags.batchSize
	}
	if f.Changed("max-concurrent") {
		o.MaxConcurrentBatches = importFlags.maxConcurrent
	}
	if f.Changed("workers") {
		o.WorkerCount = importFlags.workers
	}
	if f.Changed("chunk-lines") {
		o.ChunkSizeLines = importFlags.chunkLines
	}
	if f.Changed("no-transaction") {
		o.UseTransaction = config.Bool(!importFlags.noTransaction)
	}
	if f.Changed("no-workers") {
		o.UseWorkers = config.Bool(!importFlags.noWorkers)
	}
	if f.Changed("no-copy") {
		o.UsePgCopyStream = config.Bool(!importFlags.noCopy)
	}
	if f.Changed("dry-chunks") {
		o.PersistChunks = config.Bool(!importFlags.dryChunks)
	}
	if f.Changed("pg-dsn") {
		o.PgDSN = importFlags.pgDSN
	}
	if f.Changed("log-level") {
		o.LogLevel = importFlags.logLevel
	}
}

func newProgressBar(path string, log zerolog.Logger) *progressbar.ProgressBar {
	total := int64(-1)
	if lines, err := csvread.CountLines(path); err == nil {
		total = max(lines-1, 0)
	} else {
		log.Warn().Err(err).Msg("could not count lines, progress total unknown")
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func pushRunMetrics(ctx context.Context, log zerolog.Logger, m *ingest.Metrics, runErr error) {
	if cfg.PushgatewayURL == "" {
		return
	}
	rec, err := metrics.NewRecorder()
	if err != nil {
		log.Warn().Err(err).Msg("metrics recorder unavailable")
		return
	}
	rec.ObserveRun(cfg.Destination, m, runErr)

	var runID string
	if m != nil {
		runID = m.RunID
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := rec.Push(pushCtx, cfg.PushgatewayURL, "", runID); err != nil {
		log.Warn().Err(err).Msg("pushing run metrics failed")
		return
	}
	log.Info().Str("pushgateway", cfg.PushgatewayURL).Msg("run metrics pushed")
}

// phaseOf names where an import error came from.
func phaseOf(err error) string {
	var (
		ie *ingest.InputError
		wf *ingest.WorkerFailure
		ce *ingest.ConnectionError
	)
	switch {
	case errors.As(err, &ie):
		return "validate"
	case errors.As(err, &wf):
		return "chunk"
	case errors.As(err, &ce):
		if ce.Op == "bulk copy" {
			return "copy"
		}
		return "load"
	}
	return "load"
}

func exitCodeFor(err error) int {
	switch phaseOf(err) {
	case "validate":
		return exitcode.ValidationError
	case "chunk":
		return exitcode.WorkerError
	case "copy":
		return exitcode.CopyError
	}
	return exitcode.DBConnError
}
