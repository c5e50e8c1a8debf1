package ingest

import (
	"errors"
	"fmt"
)

// ErrMalformedRow marks a data line whose field count differs from the
// header. Such lines are logged and counted, never returned to callers.
var ErrMalformedRow = errors.New("malformed row")

// InputError reports an ImportCSV argument that was rejected before any
// work started.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// InsertionError is a batch the store rejected. The batch's records are
// counted as failed and the load continues.
type InsertionError struct {
	Table string
	Batch int64
	Size  int
	Err   error
}

func (e *InsertionError) Error() string {
	return fmt.Sprintf("insert batch %d (%d records) into %s: %s", e.Batch, e.Size, e.Table, e.Err)
}

func (e *InsertionError) Unwrap() error {
	return e.Err
}

// ConnectionError aborts a run: reading the input or talking to the store
// failed in a way that invalidates the whole load. Any transaction has been
// rolled back by the time it is returned.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// WorkerFailure is a chunk worker that could not finish its range.
type WorkerFailure struct {
	Chunk     int
	StartLine int64
	EndLine   int64
	Err       error
}

func (e *WorkerFailure) Error() string {
	return fmt.Sprintf("worker for chunk %d [%d,%d): %s", e.Chunk, e.StartLine, e.EndLine, e.Err)
}

func (e *WorkerFailure) Unwrap() error {
	return e.Err
}

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
