package ingest

import (
	"sync"
	"time"

	"github.com/AndriyPolukhin/app-aiv/internal/config"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
)

// Config is the resolved, immutable processor configuration for one run.
// Adjustments such as the large-file batch clamp produce a modified copy.
type Config struct {
	BatchSize            int
	MaxConcurrentBatches int
	UseTransaction       bool
	UseWorkers           bool
	ChunkSizeLines       int
	UsePgCopyStream      bool
	PgDSN                string
	LogLevel             string
	WorkerCount          int
	PersistChunks        bool
	Schemas              map[string]model.Destination
}

// NewConfig layers opts over config.DefaultOptions.
func NewConfig(opts config.Options) Config {
	o := opts.Merge(config.DefaultOptions())
	return Config{
		BatchSize:            o.BatchSize,
		MaxConcurrentBatches: o.MaxConcurrentBatches,
		UseTransaction:       *o.UseTransaction,
		UseWorkers:           *o.UseWorkers,
		ChunkSizeLines:       o.ChunkSizeLines,
		UsePgCopyStream:      *o.UsePgCopyStream,
		PgDSN:                o.PgDSN,
		LogLevel:             o.LogLevel,
		WorkerCount:          o.WorkerCount,
		PersistChunks:        *o.PersistChunks,
		Schemas:              model.DestinationMap(),
	}
}

// Metrics summarizes one run. SuccessfulRecords + FailedRecords never
// exceeds TotalRecords and equals it once the run completes. While a
// streaming or chunked run is in flight TotalRecords counts the records
// seen so far. MalformedRows
// counts lines dropped for a field-count mismatch; they are not records and
// are not included in TotalRecords.
type Metrics struct {
	RunID             string
	Strategy          Strategy
	StartTime         time.Time
	EndTime           time.Time
	TotalRecords      int64
	SuccessfulRecords int64
	FailedRecords     int64
	MalformedRows     int64
	CurrentBatch      int64 // batches finished
	TotalBatches      int64 // batches dispatched so far
}

// Duration is the wall time of the run so far.
func (m Metrics) Duration() time.Duration {
	end := m.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(m.StartTime)
}

// RecordsPerSecond is the throughput over TotalRecords.
func (m Metrics) RecordsPerSecond() float64 {
	secs := m.Duration().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(m.TotalRecords) / secs
}

// tracker is the mutex-guarded counter set shared by batch goroutines.
type tracker struct {
	mu sync.Mutex
	m  Metrics
}

func newTracker(runID string, s Strategy) *tracker {
	return &tracker{m: Metrics{RunID: runID, Strategy: s, StartTime: time.Now()}}
}

func (t *tracker) update(fn func(m *Metrics)) Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.m)
	return t.m
}

func (t *tracker) dispatch() int64 {
	m := t.update(func(m *Metrics) { m.TotalBatches++ })
	return m.TotalBatches
}

func (t *tracker) batchDone(ok, failed int64) Metrics {
	return t.update(func(m *Metrics) {
		m.CurrentBatch++
		m.SuccessfulRecords += ok
		m.FailedRecords += failed
	})
}

// accepted counts a record queued for insertion.
func (t *tracker) accepted() {
	t.update(func(m *Metrics) { m.TotalRecords++ })
}

// rejected counts a record that failed validation.
func (t *tracker) rejected() {
	t.update(func(m *Metrics) {
		m.TotalRecords++
		m.FailedRecords++
	})
}

func (t *tracker) malformed() {
	t.update(func(m *Metrics) { m.MalformedRows++ })
}

func (t *tracker) snapshot() Metrics {
	return t.update(func(*Metrics) {})
}

// finish stamps EndTime and, unless total is negative, sets TotalRecords.
// A negative total means Successful + Failed.
func (t *tracker) finish(total int64) Metrics {
	return t.update(func(m *Metrics) {
		m.EndTime = time.Now()
		if total < 0 {
			total = m.SuccessfulRecords + m.FailedRecords
		}
		m.TotalRecords = total
	})
}
