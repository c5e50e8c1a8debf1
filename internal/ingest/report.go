package ingest

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AndriyPolukhin/app-aiv/internal/logging"
)

// progressEvery is how many finished batches pass between progress lines.
const progressEvery = 10

// ProgressFunc observes every metrics update; expected is the anticipated
// record count, or 0 when unknown.
type ProgressFunc func(m Metrics, expected int64)

// Reporter emits leveled run logs plus periodic and final throughput
// summaries. A Reporter is safe for concurrent use.
type Reporter struct {
	log      zerolog.Logger
	runID    string
	progress ProgressFunc
}

// NewReporter tags log with a fresh run id and filters it at level
// (debug|info|warn|error; unknown values mean info).
func NewReporter(log zerolog.Logger, level string) *Reporter {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if lvl < log.GetLevel() {
		lvl = log.GetLevel()
	}
	runID := uuid.NewString()
	return &Reporter{
		log:   log.Level(lvl).With().Str("run_id", runID).Logger(),
		runID: runID,
	}
}

// WithProgress returns a copy of r that also calls fn on each update.
func (r *Reporter) WithProgress(fn ProgressFunc) *Reporter {
	cp := *r
	cp.progress = fn
	return &cp
}

// With returns a copy of r whose logs carry key=value.
func (r *Reporter) With(key, value string) *Reporter {
	cp := *r
	cp.log = r.log.With().Str(key, value).Logger()
	return &cp
}

func (r *Reporter) RunID() string { return r.runID }

// Logger returns the run logger.
func (r *Reporter) Logger() *zerolog.Logger { return &r.log }

// BatchDone records a finished batch. Every progressEvery batches it logs
// completion percentage and ETA when expected is known.
func (r *Reporter) BatchDone(m Metrics, expected int64) {
	if r.progress != nil {
		r.progress(m, expected)
	}
	if m.CurrentBatch == 0 || m.CurrentBatch%progressEvery != 0 {
		return
	}
	r.Progress(m, expected)
}

// Progress logs one progress line.
func (r *Reporter) Progress(m Metrics, expected int64) {
	elapsed := m.Duration().Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(m.SuccessfulRecords) / elapsed
	}

	ev := r.log.Info().
		Int64("batch", m.CurrentBatch).
		Int64("batches", m.TotalBatches).
		Int64("successful", m.SuccessfulRecords).
		Int64("failed", m.FailedRecords).
		Float64("records_per_sec", rate)
	if expected > 0 {
		ev = ev.Int64("expected", expected).
			Float64("percent", 100*float64(m.SuccessfulRecords+m.FailedRecords)/float64(expected))
		if rate > 0 {
			remaining := float64(expected-m.SuccessfulRecords-m.FailedRecords) / rate
			ev = ev.Float64("eta_sec", max(remaining, 0))
		}
	}
	ev.Msg("progress")
}

// Final logs the end-of-run summary.
func (r *Reporter) Final(m Metrics) {
	if r.progress != nil {
		r.progress(m, m.TotalRecords)
	}
	r.log.Info().
		Str("strategy", string(m.Strategy)).
		Int64("total", m.TotalRecords).
		Int64("successful", m.SuccessfulRecords).
		Int64("failed", m.FailedRecords).
		Int64("malformed", m.MalformedRows).
		Int64("batches", m.CurrentBatch).
		Float64("records_per_sec", m.RecordsPerSecond()).
		Str("duration", m.Duration().String()).
		Msg("import complete")
}
