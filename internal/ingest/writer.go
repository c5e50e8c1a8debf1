package ingest

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AndriyPolukhin/app-aiv/internal/csvread"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
	"github.com/AndriyPolukhin/app-aiv/internal/transform"
)

// batchWriter inserts batches asynchronously with at most limit inserts in
// flight. A rejected batch is logged and counted; it never stops the run.
type batchWriter struct {
	ctx      context.Context
	g        errgroup.Group
	ins      store.Inserter
	dest     model.Destination
	tr       *tracker
	rep      *Reporter
	expected int64
}

func newBatchWriter(ctx context.Context, ins store.Inserter, dest model.Destination, tr *tracker, rep *Reporter, limit int, expected int64) *batchWriter {
	w := &batchWriter{ctx: ctx, ins: ins, dest: dest, tr: tr, rep: rep, expected: expected}
	w.g.SetLimit(max(1, limit))
	return w
}

// submit blocks while the in-flight limit is reached. batch must not be
// reused by the caller.
func (w *batchWriter) submit(batch []model.Record) {
	n := w.tr.dispatch()
	w.g.Go(func() error {
		var m Metrics
		if _, err := w.ins.InsertBatch(w.ctx, w.dest, batch); err != nil {
			ierr := &InsertionError{Table: w.dest.Table, Batch: n, Size: len(batch), Err: err}
			w.rep.Logger().Error().Err(ierr).Int64("batch", n).Msg("batch insert failed")
			m = w.tr.batchDone(0, int64(len(batch)))
		} else {
			m = w.tr.batchDone(int64(len(batch)), 0)
		}
		w.rep.BatchDone(m, w.expected)
		return nil
	})
}

// wait blocks until every submitted batch has finished.
func (w *batchWriter) wait() {
	_ = w.g.Wait()
}

// rowBuilder turns raw lines into typed records for one header. Header
// names resolve to destination columns ignoring spaces and case.
type rowBuilder struct {
	header []string
	dest   model.Destination
}

func newRowBuilder(header []string, dest model.Destination) rowBuilder {
	names := make([]string, len(header))
	for i, h := range header {
		if c, ok := dest.LookupColumn(h); ok {
			names[i] = c.Name
		} else {
			names[i] = strings.TrimSpace(h)
		}
	}
	return rowBuilder{header: names, dest: dest}
}

func (b rowBuilder) build(line string) (model.Record, error) {
	fields := csvread.ParseLine(line)
	if len(fields) != len(b.header) {
		return nil, fmt.Errorf("%w: %d fields, header has %d", ErrMalformedRow, len(fields), len(b.header))
	}
	row := make(map[string]string, len(fields))
	for i, name := range b.header {
		row[name] = fields[i]
	}
	return transform.Transform(row, b.dest)
}

// rollback aborts tx, if any, even when ctx is already cancelled.
func rollback(ctx context.Context, tx store.Tx, rep *Reporter) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		rep.Logger().Error().Err(err).Msg("rollback failed")
		return
	}
	rep.Logger().Info().Msg("transaction rolled back")
}
