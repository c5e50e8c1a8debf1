package ingest

import (
	"testing"

	"github.com/AndriyPolukhin/app-aiv/internal/config"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

func TestSelectStrategy(t *testing.T) {
	pg := store.Capabilities{Dialect: store.DialectPostgres, BulkCopy: true}
	lite := store.Capabilities{Dialect: store.DialectSQLite}

	tests := []struct {
		name    string
		sizeMB  float64
		caps    store.Capabilities
		copy    bool
		workers bool
		want    Strategy
	}{
		{"bulk_copy_small_file", 1, pg, true, true, StrategyBulkCopy},
		{"bulk_copy_large_file", 600, pg, true, true, StrategyBulkCopy},
		{"copy_disabled_large", 600, pg, false, true, StrategyChunked},
		{"copy_unsupported_large", 600, lite, true, true, StrategyChunked},
		{"workers_disabled_large", 600, lite, true, false, StrategyStreaming},
		{"exactly_100mb", 100, lite, false, true, StrategyStreaming},
		{"just_over_100mb", 100.01, lite, false, true, StrategyChunked},
		{"small_file", 10, lite, false, true, StrategyStreaming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.UsePgCopyStream = tt.copy
			cfg.UseWorkers = tt.workers
			if got := SelectStrategy(tt.sizeMB, tt.caps, cfg); got != tt.want {
				t.Errorf("SelectStrategy(%v) = %s, want %s", tt.sizeMB, got, tt.want)
			}
		})
	}
}

func TestSelectStrategy_600MBChunkedWithClampedBatch(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 500
	cfg.UsePgCopyStream = false
	cfg.UseWorkers = true

	if got := SelectStrategy(600, store.Capabilities{}, cfg); got != StrategyChunked {
		t.Fatalf("strategy: got %s, want %s", got, StrategyChunked)
	}
	eff := EffectiveConfig(600, cfg)
	if eff.BatchSize != 250 {
		t.Errorf("effective batch size: got %d, want 250", eff.BatchSize)
	}
	if cfg.BatchSize != 500 {
		t.Errorf("EffectiveConfig must not mutate its input, batch size now %d", cfg.BatchSize)
	}
}

func TestEffectiveConfig(t *testing.T) {
	tests := []struct {
		sizeMB float64
		batch  int
		want   int
	}{
		{400, 500, 500},
		{500, 500, 500},
		{501, 500, 250},
		{900, 100, 100},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.BatchSize = tt.batch
		if got := EffectiveConfig(tt.sizeMB, cfg).BatchSize; got != tt.want {
			t.Errorf("EffectiveConfig(%v, batch=%d) = %d, want %d", tt.sizeMB, tt.batch, got, tt.want)
		}
	}
}

func TestDecide(t *testing.T) {
	path := writeCSV(t, engineerCSV(3))
	d, err := Decide(path, store.Capabilities{}, testConfig())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Strategy != StrategyStreaming {
		t.Errorf("strategy: got %s, want streaming", d.Strategy)
	}
	if d.FileSizeMB <= 0 || d.FileSizeMB > 1 {
		t.Errorf("unexpected size %v MB", d.FileSizeMB)
	}

	if _, err := Decide(path+".missing", store.Capabilities{}, testConfig()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := testConfig()
	if cfg.BatchSize != 10 || cfg.MaxConcurrentBatches != 3 || cfg.WorkerCount != 3 {
		t.Errorf("explicit options not applied: %+v", cfg)
	}
	if len(cfg.Schemas) != 6 {
		t.Errorf("expected 6 destination schemas, got %d", len(cfg.Schemas))
	}

	def := NewConfig(config.Options{})
	if def.BatchSize != 500 || !def.UseTransaction || !def.UsePgCopyStream || !def.PersistChunks {
		t.Errorf("unexpected defaults: %+v", def)
	}
	if def.MaxConcurrentBatches < 3 || def.MaxConcurrentBatches > 10 {
		t.Errorf("default concurrency out of range: %d", def.MaxConcurrentBatches)
	}
}
