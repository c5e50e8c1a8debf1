package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/AndriyPolukhin/app-aiv/internal/csvread"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

// copyCSV streams a CSV file into a table. Replaced in tests.
var copyCSV = store.CopyCSV

// BulkCopyLoad hands the whole file to the server's COPY ... FROM STDIN
// WITH CSV HEADER on a dedicated connection (cfg.PgDSN, or the store's own
// DSN). Rows are not validated client-side; the load is all or nothing.
func BulkCopyLoad(ctx context.Context, cfg Config, st store.Store, path string, dest model.Destination, rep *Reporter) (*Metrics, error) {
	log := rep.Logger()
	tr := newTracker(rep.RunID(), StrategyBulkCopy)

	dsn := cfg.PgDSN
	if dsn == "" {
		if c, ok := st.(store.Connector); ok {
			dsn = c.DSN()
		}
	}
	if dsn == "" {
		return nil, &ConnectionError{Op: "bulk copy", Err: store.ErrBulkCopyUnsupported}
	}

	header, err := csvread.ReadHeader(path)
	if err != nil {
		return nil, &ConnectionError{Op: "read header", Err: err}
	}
	columns, err := copyColumns(header, dest)
	if err != nil {
		return nil, &InputError{Field: "header", Err: err}
	}
	lines, err := csvread.CountLines(path)
	if err != nil {
		return nil, &ConnectionError{Op: "count lines", Err: err}
	}
	total := max(lines-1, 0)
	tr.update(func(m *Metrics) { m.TotalRecords = total })

	f, err := os.Open(path)
	if err != nil {
		return nil, &ConnectionError{Op: "open input", Err: err}
	}
	defer f.Close()

	log.Info().Str("table", dest.Table).Int64("data_lines", total).Msg("copying file with COPY FROM STDIN")
	tr.update(func(m *Metrics) { m.StartTime = time.Now() })

	copied, err := copyCSV(ctx, dsn, dest.Table, columns, f)
	if err != nil {
		log.Error().Err(err).Msg("bulk copy failed, transaction rolled back")
		m := tr.update(func(m *Metrics) {
			m.SuccessfulRecords = 0
			m.FailedRecords = total
			m.EndTime = time.Now()
		})
		rep.Final(m)
		return nil, &ConnectionError{Op: "bulk copy", Err: err}
	}
	if copied != total {
		log.Warn().Int64("rows_copied", copied).Int64("data_lines", total).Msg("copied row count differs from data line count")
	}

	m := tr.update(func(m *Metrics) {
		m.SuccessfulRecords = total
		m.FailedRecords = 0
		m.EndTime = time.Now()
	})
	log.Info().Str("table", dest.Table).Msg("bulk copy committed")
	rep.Final(m)
	return &m, nil
}

// copyColumns maps header names onto the destination's column names the
// same way the row builder reads them: trimmed and case-insensitive.
func copyColumns(header []string, dest model.Destination) ([]string, error) {
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		c, ok := dest.LookupColumn(h)
		if !ok {
			return nil, fmt.Errorf("column %q is not in %s", h, dest.Table)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("column %q appears twice", c.Name)
		}
		seen[c.Name] = true
		cols[i] = c.Name
	}
	return cols, nil
}
