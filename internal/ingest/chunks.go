package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AndriyPolukhin/app-aiv/internal/csvread"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

// Chunk is one worker's half-open range [StartLine, EndLine) of data
// lines. Data line 1 is the first line after the header.
type Chunk struct {
	Index       int
	StartLine   int64
	EndLine     int64
	FilePath    string
	Destination model.Destination
	Header      []string
	BatchSize   int
}

// Len is the number of data lines in the chunk.
func (c Chunk) Len() int64 {
	return c.EndLine - c.StartLine
}

// ChunkResult is what a worker reports for its range. Successful counts
// records that passed validation; insert failures are tracked by the writer.
type ChunkResult struct {
	Successful int64
	Failed     int64
	Malformed  int64
	Processed  int64
}

func (r *ChunkResult) add(o ChunkResult) {
	r.Successful += o.Successful
	r.Failed += o.Failed
	r.Malformed += o.Malformed
	r.Processed += o.Processed
}

type chunkOutcome struct {
	Chunk  Chunk
	Result ChunkResult
	Err    error
}

// PlanChunks splits totalLines data lines into workerCount contiguous
// ranges that together cover [1, totalLines+1) exactly once. Trailing
// ranges may be empty ([totalLines+1, totalLines+1)).
func PlanChunks(totalLines int64, workerCount int) []Chunk {
	k := int64(max(1, workerCount))
	total := max(totalLines, 0)
	perWorker := (total + k - 1) / k
	end := total + 1

	chunks := make([]Chunk, k)
	for i := int64(0); i < k; i++ {
		chunks[i] = Chunk{
			Index:     int(i),
			StartLine: min(i*perWorker+1, end),
			EndLine:   min((i+1)*perWorker+1, end),
		}
	}
	return chunks
}

// ChunkLoad splits the file into one range per worker and processes the
// ranges in parallel, each worker with its own file handle. With
// cfg.PersistChunks the workers hand transformed batches to a single
// writer that inserts them under the same admission and transaction rules
// as StreamLoad; without it rows are validated and counted only.
//
// A worker that cannot finish its range fails the whole run with a
// *WorkerFailure after the other workers stop and any transaction is
// rolled back.
func ChunkLoad(ctx context.Context, cfg Config, st store.Store, path string, dest model.Destination, rep *Reporter) (*Metrics, error) {
	log := rep.Logger()
	tr := newTracker(rep.RunID(), StrategyChunked)

	header, err := csvread.ReadHeader(path)
	if err != nil {
		return nil, &ConnectionError{Op: "read header", Err: err}
	}
	lines, err := csvread.CountLines(path)
	if err != nil {
		return nil, &ConnectionError{Op: "count lines", Err: err}
	}
	total := max(lines-1, 0)
	batchSize := max(1, cfg.BatchSize)
	log.Info().
		Int64("data_lines", total).
		Int("workers", cfg.WorkerCount).
		Int64("planned_batches", (total+int64(batchSize)-1)/int64(batchSize)).
		Msg("file line count")

	if !cfg.PersistChunks {
		log.Warn().Msg("chunk persistence disabled: rows are validated and counted but not written")
	}

	var (
		ins store.Inserter = st
		tx  store.Tx
	)
	if cfg.PersistChunks && cfg.UseTransaction {
		if tx, err = st.Begin(ctx); err != nil {
			return nil, &ConnectionError{Op: "begin transaction", Err: err}
		}
		ins = tx
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	plan := PlanChunks(total, cfg.WorkerCount)
	outcomes := make(chan chunkOutcome, len(plan))
	var batches chan []model.Record
	if cfg.PersistChunks {
		batches = make(chan []model.Record, max(1, cfg.MaxConcurrentBatches))
	}

	var workers sync.WaitGroup
	for _, c := range plan {
		if c.Len() == 0 {
			continue
		}
		c.FilePath = path
		c.Destination = dest
		c.Header = header
		c.BatchSize = batchSize

		workers.Add(1)
		go func() {
			defer workers.Done()
			res, err := runChunk(ctx, c, cfg.ChunkSizeLines, tr, rep, batches)
			outcomes <- chunkOutcome{Chunk: c, Result: res, Err: err}
		}()
	}
	go func() {
		workers.Wait()
		if batches != nil {
			close(batches)
		}
		close(outcomes)
	}()

	writerDone := make(chan struct{})
	if batches != nil {
		w := newBatchWriter(ctx, ins, dest, tr, rep, cfg.MaxConcurrentBatches, total)
		go func() {
			defer close(writerDone)
			for b := range batches {
				w.submit(b)
			}
			w.wait()
		}()
	} else {
		close(writerDone)
	}

	var (
		agg      ChunkResult
		firstErr error
	)
	for o := range outcomes {
		if o.Err != nil {
			if firstErr == nil {
				firstErr = o.Err
				cancel()
			}
			continue
		}
		log.Info().
			Int("chunk", o.Chunk.Index).
			Int64("start_line", o.Chunk.StartLine).
			Int64("end_line", o.Chunk.EndLine).
			Int64("successful", o.Result.Successful).
			Int64("failed", o.Result.Failed).
			Msg("worker completed chunk")
		agg.add(o.Result)
	}
	<-writerDone

	if firstErr != nil {
		log.Error().Err(firstErr).Msg("chunk worker failed")
		rollback(ctx, tx, rep)
		return nil, firstErr
	}

	if tx != nil {
		if err := tx.Commit(ctx); err != nil {
			rollback(ctx, tx, rep)
			return nil, &ConnectionError{Op: "commit", Err: err}
		}
		log.Info().Msg("transaction committed")
	}

	log.Debug().
		Int64("processed", agg.Processed).
		Int64("malformed", agg.Malformed).
		Msg("all chunks processed")
	m := tr.finish(-1)
	rep.Final(m)
	return &m, nil
}

// runChunk scans the file from the top and handles only the lines inside
// c's range. With out set, full batches are sent there; otherwise they are
// counted as successful in place.
func runChunk(ctx context.Context, c Chunk, progressEvery int, tr *tracker, rep *Reporter, out chan<- []model.Record) (res ChunkResult, err error) {
	fail := func(err error) error {
		return &WorkerFailure{Chunk: c.Index, StartLine: c.StartLine, EndLine: c.EndLine, Err: err}
	}
	defer func() {
		if p := recover(); p != nil {
			err = fail(fmt.Errorf("panic: %v", p))
		}
	}()

	r, err := csvread.Open(c.FilePath)
	if err != nil {
		return res, fail(err)
	}
	defer r.Close()

	if _, ok := r.Next(); !ok {
		if err := r.Err(); err != nil {
			return res, fail(err)
		}
		return res, fail(errors.New("header line missing"))
	}

	log := rep.Logger()
	rows := newRowBuilder(c.Header, c.Destination)
	batch := make([]model.Record, 0, c.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if out == nil {
			tr.dispatch()
			rep.BatchDone(tr.batchDone(int64(len(batch)), 0), 0)
			batch = batch[:0]
			return nil
		}
		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
		batch = make([]model.Record, 0, c.BatchSize)
		return nil
	}

	for dataLine := int64(1); dataLine < c.EndLine; dataLine++ {
		if dataLine%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return res, fail(err)
			}
		}
		line, ok := r.Next()
		if !ok {
			if err := r.Err(); err != nil {
				return res, fail(err)
			}
			break
		}
		if dataLine < c.StartLine {
			continue
		}

		res.Processed++
		rec, err := rows.build(line)
		switch {
		case errors.Is(err, ErrMalformedRow):
			res.Malformed++
			tr.malformed()
			log.Warn().Int("chunk", c.Index).Int64("line", dataLine).Err(err).Msg("skipping malformed line")
		case err != nil:
			res.Failed++
			tr.rejected()
			log.Warn().Int("chunk", c.Index).Int64("line", dataLine).Err(err).Msg("row failed validation")
		default:
			res.Successful++
			tr.accepted()
			batch = append(batch, rec)
			if len(batch) >= c.BatchSize {
				if err := flush(); err != nil {
					return res, fail(err)
				}
			}
		}

		if progressEvery > 0 && res.Processed%int64(progressEvery) == 0 {
			log.Debug().Int("chunk", c.Index).Int64("processed", res.Processed).Int64("lines", c.Len()).Msg("worker progress")
		}
	}

	if err := flush(); err != nil {
		return res, fail(err)
	}
	return res, nil
}
