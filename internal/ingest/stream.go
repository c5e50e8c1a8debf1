package ingest

import (
	"context"
	"errors"

	"github.com/AndriyPolukhin/app-aiv/internal/csvread"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

// StreamLoad reads path line by line and inserts records in batches, with
// at most cfg.MaxConcurrentBatches inserts in flight. With
// cfg.UseTransaction every batch goes through one transaction that is
// committed once at the end; a batch the store rejects rolls back only
// itself. A read failure or cancellation rolls back everything.
func StreamLoad(ctx context.Context, cfg Config, st store.Store, path string, dest model.Destination, rep *Reporter) (*Metrics, error) {
	r, err := csvread.Open(path)
	if err != nil {
		return nil, &ConnectionError{Op: "open input", Err: err}
	}
	defer r.Close()
	return streamLoad(ctx, cfg, st, dest, r, rep)
}

func streamLoad(ctx context.Context, cfg Config, st store.Store, dest model.Destination, r *csvread.Reader, rep *Reporter) (*Metrics, error) {
	log := rep.Logger()
	tr := newTracker(rep.RunID(), StrategyStreaming)

	headerLine, ok := r.Next()
	if !ok {
		if err := r.Err(); err != nil {
			return nil, &ConnectionError{Op: "read header", Err: err}
		}
		log.Warn().Msg("input is empty, nothing to load")
		m := tr.finish(-1)
		rep.Final(m)
		return &m, nil
	}
	rows := newRowBuilder(csvread.ParseLine(headerLine), dest)

	var (
		ins store.Inserter = st
		tx  store.Tx
	)
	if cfg.UseTransaction {
		var err error
		if tx, err = st.Begin(ctx); err != nil {
			return nil, &ConnectionError{Op: "begin transaction", Err: err}
		}
		ins = tx
	}

	w := newBatchWriter(ctx, ins, dest, tr, rep, cfg.MaxConcurrentBatches, 0)
	batchSize := max(1, cfg.BatchSize)
	batch := make([]model.Record, 0, batchSize)

	var readErr error
	for {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}
		line, ok := r.Next()
		if !ok {
			readErr = r.Err()
			break
		}
		dataLine := r.Line() - 1

		rec, err := rows.build(line)
		if errors.Is(err, ErrMalformedRow) {
			tr.malformed()
			log.Warn().Int64("line", dataLine).Err(err).Msg("skipping malformed line")
			continue
		}
		if err != nil {
			tr.rejected()
			log.Warn().Int64("line", dataLine).Err(err).Msg("row failed validation")
			continue
		}

		tr.accepted()
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			w.submit(batch)
			batch = make([]model.Record, 0, batchSize)
		}
	}

	if readErr != nil {
		w.wait()
		log.Error().Err(readErr).Msg("reading input failed")
		rollback(ctx, tx, rep)
		return nil, &ConnectionError{Op: "read input", Err: readErr}
	}

	if len(batch) > 0 {
		w.submit(batch)
	}
	w.wait()

	if tx != nil {
		if err := tx.Commit(ctx); err != nil {
			rollback(ctx, tx, rep)
			return nil, &ConnectionError{Op: "commit", Err: err}
		}
		log.Info().Msg("transaction committed")
	}

	m := tr.finish(-1)
	rep.Final(m)
	return &m, nil
}
