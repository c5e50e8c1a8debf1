package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/AndriyPolukhin/app-aiv/internal/config"
	"github.com/AndriyPolukhin/app-aiv/internal/logging"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

// ImportOption customizes ImportCSV.
type ImportOption func(*importSettings)

type importSettings struct {
	log      *zerolog.Logger
	progress ProgressFunc
}

// WithLogger sends run logs to log instead of a JSON logger on stderr.
func WithLogger(log zerolog.Logger) ImportOption {
	return func(s *importSettings) { s.log = &log }
}

// WithProgressFunc observes every batch completion.
func WithProgressFunc(fn ProgressFunc) ImportOption {
	return func(s *importSettings) { s.progress = fn }
}

// ImportCSV loads the delimited file at filePath into the named
// destination. Unset opts fields take the host-derived defaults.
//
// Rows that fail validation or belong to a rejected batch are counted in
// FailedRecords and do not stop the run. On error the returned Metrics is
// nil and, when a transaction was in use, nothing was committed.
//
// Imports are not idempotent: running the same file twice appends its rows
// again, or fails the batches that hit unique constraints.
func ImportCSV(ctx context.Context, st store.Store, filePath, destination string, opts config.Options, options ...ImportOption) (*Metrics, error) {
	var s importSettings
	for _, o := range options {
		o(&s)
	}

	if filePath == "" {
		return nil, &InputError{Field: "file path", Err: errors.New("must not be empty")}
	}
	if st == nil {
		return nil, &InputError{Field: "store", Err: errors.New("must not be nil")}
	}
	if err := opts.Validate(); err != nil {
		return nil, &InputError{Field: "options", Err: err}
	}
	cfg := NewConfig(opts)

	dest, ok := lookupDestination(cfg, destination)
	if !ok {
		return nil, &InputError{Field: "destination", Err: fmt.Errorf("unknown destination %q", destination)}
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, &InputError{Field: "file path", Err: err}
	}
	if info.IsDir() {
		return nil, &InputError{Field: "file path", Err: fmt.Errorf("%s is a directory", filePath)}
	}

	var log zerolog.Logger
	if s.log != nil {
		log = *s.log
	} else if log, err = logging.Setup("json", cfg.LogLevel); err != nil {
		return nil, &InputError{Field: "options", Err: err}
	}
	rep := NewReporter(log, cfg.LogLevel).With("destination", dest.Name)
	if s.progress != nil {
		rep = rep.WithProgress(s.progress)
	}

	return Run(ctx, cfg, st, filePath, dest, rep)
}

func lookupDestination(cfg Config, name string) (model.Destination, bool) {
	d, ok := model.DestinationByName(name)
	if !ok {
		return model.Destination{}, false
	}
	if cfg.Schemas != nil {
		d, ok = cfg.Schemas[d.Name]
	}
	return d, ok
}
