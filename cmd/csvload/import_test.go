package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/AndriyPolukhin/app-aiv/internal/exitcode"
	"github.com/AndriyPolukhin/app-aiv/internal/ingest"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		phase string
		code  int
	}{
		{"input", &ingest.InputError{Field: "destination", Err: errors.New("unknown")}, "validate", exitcode.ValidationError},
		{"worker", &ingest.WorkerFailure{Chunk: 1, Err: errors.New("eof")}, "chunk", exitcode.WorkerError},
		{"copy", &ingest.ConnectionError{Op: "bulk copy", Err: errors.New("bad row")}, "copy", exitcode.CopyError},
		{"read", &ingest.ConnectionError{Op: "read input", Err: errors.New("io")}, "load", exitcode.DBConnError},
		{"wrapped", fmt.Errorf("run: %w", &ingest.InputError{Field: "file path", Err: errors.New("missing")}), "validate", exitcode.ValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := phaseOf(tt.err); got != tt.phase {
				t.Errorf("phaseOf: got %q, want %q", got, tt.phase)
			}
			if got := exitCodeFor(tt.err); got != tt.code {
				t.Errorf("exitCodeFor: got %d, want %d", got, tt.code)
			}
		})
	}
}
