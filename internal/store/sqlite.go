package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/AndriyPolukhin/app-aiv/internal/model"
)

// SQLite is a database/sql store over modernc.org/sqlite. It has no bulk
// copy path; batches are written with multi-row INSERT statements.
type SQLite struct {
	db *sql.DB
}

// sqliteMaxVars stays under SQLITE_MAX_VARIABLE_NUMBER on older builds.
const sqliteMaxVars = 999

// OpenSQLite opens the database at path (":memory:" for a private
// in-memory database). The pool is pinned to one connection so an
// in-memory database survives and writers serialize.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: path must not be empty")
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &SQLite{db: conn}, nil
}

func (s *SQLite) Capabilities() Capabilities {
	return Capabilities{Dialect: DialectSQLite}
}

// DB exposes the underlying handle.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Close() { s.db.Close() }

func (s *SQLite) Exec(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// InsertBatch writes recs in a short transaction of its own.
func (s *SQLite) InsertBatch(ctx context.Context, dest model.Destination, recs []model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	n, err := insertRows(ctx, tx, dest, recs)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

func (s *SQLite) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteTx struct {
	mu  sync.Mutex
	tx  *sql.Tx
	seq int
}

func (t *sqliteTx) InsertBatch(ctx context.Context, dest model.Destination, recs []model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	sp := fmt.Sprintf("batch_%d", t.seq)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return 0, fmt.Errorf("sqlite: savepoint: %w", err)
	}
	n, err := insertRows(ctx, t.tx, dest, recs)
	if err != nil {
		_, _ = t.tx.ExecContext(context.Background(), "ROLLBACK TO SAVEPOINT "+sp)
		_, _ = t.tx.ExecContext(context.Background(), "RELEASE SAVEPOINT "+sp)
		return 0, err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return 0, fmt.Errorf("sqlite: release savepoint: %w", err)
	}
	return n, nil
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("sqlite: rollback: %w", err)
	}
	return nil
}

// insertRows issues multi-row INSERTs sized to the driver's variable limit.
func insertRows(ctx context.Context, tx *sql.Tx, dest model.Destination, recs []model.Record) (int64, error) {
	cols := dest.ColumnNames()
	perRow := len(cols)
	if perRow == 0 {
		return 0, fmt.Errorf("sqlite: %s has no columns", dest.Table)
	}
	rowsPerStmt := sqliteMaxVars / perRow
	if rowsPerStmt < 1 {
		rowsPerStmt = 1
	}

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", perRow), ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", quoteIdent(dest.Table), quoteIdents(cols))

	var inserted int64
	for start := 0; start < len(recs); start += rowsPerStmt {
		end := min(start+rowsPerStmt, len(recs))
		chunk := recs[start:end]

		var sb strings.Builder
		sb.WriteString(prefix)
		args := make([]any, 0, len(chunk)*perRow)
		for i, rec := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(rowPlaceholder)
			vals := rec.CopyValues()
			if len(vals) != perRow {
				return inserted, fmt.Errorf("sqlite: %s row has %d values for %d columns", dest.Table, len(vals), perRow)
			}
			args = append(args, vals...)
		}

		res, err := tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return inserted, fmt.Errorf("sqlite: insert into %s: %w", dest.Table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(len(chunk))
		}
		inserted += n
	}
	return inserted, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIdents(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// sqlitePath reports whether dsn addresses a SQLite database and returns
// the path to hand to the driver.
func sqlitePath(dsn string) (string, bool) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return strings.TrimPrefix(dsn, "sqlite://"), true
	case strings.HasPrefix(dsn, "sqlite:"):
		return strings.TrimPrefix(dsn, "sqlite:"), true
	case strings.HasPrefix(dsn, "file:"):
		return dsn, true
	case dsn == ":memory:":
		return dsn, true
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"), strings.HasSuffix(dsn, ".sqlite3"):
		return dsn, true
	}
	return "", false
}
