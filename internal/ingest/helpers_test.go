package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/AndriyPolukhin/app-aiv/internal/config"
	"github.com/AndriyPolukhin/app-aiv/internal/db"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/store"
)

// fakeStore records batch inserts in memory and tracks insert concurrency.
type fakeStore struct {
	caps  store.Capabilities
	dsn   string
	delay time.Duration
	fail  func(call int) bool

	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
	inserted    int64
	committed   bool
	rolledBack  bool
}

func (s *fakeStore) Capabilities() store.Capabilities { return s.caps }

func (s *fakeStore) DSN() string { return s.dsn }

func (s *fakeStore) Exec(context.Context, string) error { return nil }

func (s *fakeStore) Close() {}

func (s *fakeStore) InsertBatch(ctx context.Context, _ model.Destination, recs []model.Record) (int64, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if s.fail != nil && s.fail(call) {
		return 0, fmt.Errorf("batch %d rejected", call)
	}
	s.inserted += int64(len(recs))
	return int64(len(recs)), nil
}

func (s *fakeStore) Begin(context.Context) (store.Tx, error) {
	return &fakeTx{s: s}, nil
}

type fakeTx struct{ s *fakeStore }

func (t *fakeTx) InsertBatch(ctx context.Context, dest model.Destination, recs []model.Record) (int64, error) {
	return t.s.InsertBatch(ctx, dest, recs)
}

func (t *fakeTx) Commit(context.Context) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.rolledBack = true
	return nil
}

// testConfig is a deterministic configuration independent of the host.
func testConfig() Config {
	return NewConfig(config.Options{
		BatchSize:            10,
		MaxConcurrentBatches: 3,
		WorkerCount:          3,
		UseWorkers:           config.Bool(true),
		UseTransaction:       config.Bool(true),
		UsePgCopyStream:      config.Bool(false),
		PersistChunks:        config.Bool(true),
		LogLevel:             "error",
	})
}

func testReporter() *Reporter {
	return NewReporter(zerolog.Nop(), "error")
}

func engineerDest(t *testing.T) model.Destination {
	t.Helper()
	d, ok := model.DestinationByName(model.Engineer)
	if !ok {
		t.Fatal("engineer destination missing")
	}
	return d
}

// engineerCSV renders a header plus n valid engineer rows.
func engineerCSV(n int) string {
	var b strings.Builder
	b.WriteString("id,name\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,\"Engineer, %d\"\n", i, i)
	}
	return b.String()
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func setupSQLite(t *testing.T) *store.SQLite {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(s.Close)
	if err := db.ApplyMigrations(ctx, s, store.DialectSQLite, zerolog.Nop()); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return s
}

func sqliteCount(t *testing.T, s *store.SQLite, table string) int64 {
	t.Helper()
	var n int64
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// brokenReader returns data and then a read error.
type brokenReader struct {
	data string
	done bool
}

var errDiskGone = errors.New("disk gone")

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.done || r.data == "" {
		return 0, errDiskGone
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	if r.data == "" {
		r.done = true
	}
	return n, nil
}

func assertInvariant(t *testing.T, m *Metrics) {
	t.Helper()
	if m.SuccessfulRecords+m.FailedRecords != m.TotalRecords {
		t.Errorf("successful (%d) + failed (%d) != total (%d)", m.SuccessfulRecords, m.FailedRecords, m.TotalRecords)
	}
	if m.EndTime.Before(m.StartTime) {
		t.Errorf("end time %v before start time %v", m.EndTime, m.StartTime)
	}
}
