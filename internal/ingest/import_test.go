package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/AndriyPolukhin/app-aiv/internal/config"
)

func TestImportCSV_EngineerScenario(t *testing.T) {
	s := setupSQLite(t)
	path := writeCSV(t, "id,name\n1,Alice\n2,Bob\nx,Carol\n")

	m, err := ImportCSV(context.Background(), s, path, "engineer", config.Options{LogLevel: "error"}, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if m.TotalRecords != 3 || m.SuccessfulRecords != 2 || m.FailedRecords != 1 {
		t.Errorf("got total=%d successful=%d failed=%d, want 3/2/1", m.TotalRecords, m.SuccessfulRecords, m.FailedRecords)
	}
	if m.Strategy != StrategyStreaming {
		t.Errorf("strategy: got %s, want streaming", m.Strategy)
	}
	if n := sqliteCount(t, s, "engineers"); n != 2 {
		t.Errorf("rows: got %d, want 2", n)
	}

	var name string
	if err := s.DB().QueryRow("SELECT name FROM engineers WHERE id = 2").Scan(&name); err != nil {
		t.Fatalf("query: %v", err)
	}
	if name != "Bob" {
		t.Errorf("name: got %q, want Bob", name)
	}
}

func TestImportCSV_QuotedFieldRoundTrip(t *testing.T) {
	s := setupSQLite(t)
	path := writeCSV(t, "project_id,project_name\n7,\"Platform, Core\"\n")

	m, err := ImportCSV(context.Background(), s, path, "Project", config.Options{}, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if m.SuccessfulRecords != 1 {
		t.Fatalf("successful: got %d, want 1", m.SuccessfulRecords)
	}
	var name string
	if err := s.DB().QueryRow("SELECT project_name FROM projects WHERE project_id = 7").Scan(&name); err != nil {
		t.Fatalf("query: %v", err)
	}
	if name != "Platform, Core" {
		t.Errorf("project_name: got %q", name)
	}
}

func TestImportCSV_InputErrors(t *testing.T) {
	s := setupSQLite(t)
	path := writeCSV(t, engineerCSV(1))

	tests := []struct {
		name  string
		path  string
		dest  string
		opts  config.Options
		nilSt bool
		field string
	}{
		{"empty_path", "", "engineer", config.Options{}, false, "file path"},
		{"unknown_destination", path, "payroll", config.Options{}, false, "destination"},
		{"missing_file", path + ".missing", "engineer", config.Options{}, false, "file path"},
		{"directory", t.TempDir(), "engineer", config.Options{}, false, "file path"},
		{"nil_store", path, "engineer", config.Options{}, true, "store"},
		{"bad_options", path, "engineer", config.Options{LogLevel: "loud"}, false, "options"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.nilSt {
				_, err = ImportCSV(context.Background(), nil, tt.path, tt.dest, tt.opts)
			} else {
				_, err = ImportCSV(context.Background(), s, tt.path, tt.dest, tt.opts, WithLogger(zerolog.Nop()))
			}
			var ie *InputError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *InputError, got %v", err)
			}
			if ie.Field != tt.field {
				t.Errorf("field: got %q, want %q", ie.Field, tt.field)
			}
		})
	}
}

func TestImportCSV_ProgressCallback(t *testing.T) {
	s := setupSQLite(t)
	path := writeCSV(t, engineerCSV(45))

	var calls int
	var last Metrics
	_, err := ImportCSV(context.Background(), s, path, "engineer",
		config.Options{BatchSize: 10, MaxConcurrentBatches: 1},
		WithLogger(zerolog.Nop()),
		WithProgressFunc(func(m Metrics, _ int64) {
			calls++
			last = m
		}),
	)
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	// Five batches plus the final report.
	if calls != 6 {
		t.Errorf("progress calls: got %d, want 6", calls)
	}
	if last.SuccessfulRecords != 45 || last.EndTime.IsZero() {
		t.Errorf("last progress update should be the final metrics, got %+v", last)
	}
}
