package db

import (
	"github.com/jackc/pgx/v5"

	"github.com/AndriyPolukhin/app-aiv/internal/model"
)

// RecordSource implements pgx.CopyFromSource over a batch of records.
type RecordSource struct {
	recs []model.Record
	idx  int
}

// NewRecordSource creates a CopyFromSource that yields recs in order.
func NewRecordSource(recs []model.Record) *RecordSource {
	return &RecordSource{recs: recs, idx: -1}
}

// Next advances to the next record. Returns false past the last one.
func (s *RecordSource) Next() bool {
	s.idx++
	return s.idx < len(s.recs)
}

// Values returns the current record's values in COPY column order.
func (s *RecordSource) Values() ([]any, error) {
	return s.recs[s.idx].CopyValues(), nil
}

func (s *RecordSource) Err() error {
	return nil
}

var _ pgx.CopyFromSource = (*RecordSource)(nil)
