package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

// Strategy names one of the three loaders.
type Strategy string

const (
	StrategyStreaming Strategy = "streaming"
	StrategyChunked   Strategy = "chunked"
	StrategyBulkCopy  Strategy = "bulk_copy"
)

// Size thresholds, in MiB, that steer strategy and batch size.
const (
	chunkedMinMB   = 100
	largeFileMB    = 500
	largeBatchSize = 250
)

// SelectStrategy picks the loader for a file of fileSizeMB. Native bulk
// copy wins whenever it is enabled and the store supports it; otherwise
// large files go to the chunk loader when workers are enabled.
func SelectStrategy(fileSizeMB float64, caps store.Capabilities, cfg Config) Strategy {
	switch {
	case caps.BulkCopy && cfg.UsePgCopyStream:
		return StrategyBulkCopy
	case cfg.UseWorkers && fileSizeMB > chunkedMinMB:
		return StrategyChunked
	default:
		return StrategyStreaming
	}
}

// EffectiveConfig returns cfg adjusted for the file size: files over 500 MiB
// get a batch size of at most 250.
func EffectiveConfig(fileSizeMB float64, cfg Config) Config {
	if fileSizeMB > largeFileMB && cfg.BatchSize > largeBatchSize {
		cfg.BatchSize = largeBatchSize
	}
	return cfg
}

// Decision is the outcome of planning a run for one file.
type Decision struct {
	FileSizeMB float64
	Strategy   Strategy
	Config     Config
}

// Decide stats path and applies SelectStrategy and EffectiveConfig.
func Decide(path string, caps store.Capabilities, cfg Config) (Decision, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Decision{}, fmt.Errorf("stat input: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	return Decision{
		FileSizeMB: sizeMB,
		Strategy:   SelectStrategy(sizeMB, caps, cfg),
		Config:     EffectiveConfig(sizeMB, cfg),
	}, nil
}

// Run loads path into dest with the strategy chosen for its size and the
// store's capabilities.
func Run(ctx context.Context, cfg Config, st store.Store, path string, dest model.Destination, rep *Reporter) (*Metrics, error) {
	d, err := Decide(path, st.Capabilities(), cfg)
	if err != nil {
		return nil, &ConnectionError{Op: "stat input", Err: err}
	}
	rep = rep.With("strategy", string(d.Strategy))
	log := rep.Logger()

	log.Info().
		Str("file", path).
		Str("size_mb", fmt.Sprintf("%.2f", d.FileSizeMB)).
		Str("table", dest.Table).
		Msg("processing file")
	if d.Config.BatchSize != cfg.BatchSize {
		log.Info().Int("batch_size", d.Config.BatchSize).Msg("large file detected, batch size reduced")
	}

	switch d.Strategy {
	case StrategyBulkCopy:
		return BulkCopyLoad(ctx, d.Config, st, path, dest, rep)
	case StrategyChunked:
		return ChunkLoad(ctx, d.Config, st, path, dest, rep)
	default:
		return StreamLoad(ctx, d.Config, st, path, dest, rep)
	}
}
