package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AndriyPolukhin/app-aiv/internal/db"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
)

// Postgres is a pgx-backed Store. Batches are written with the binary COPY
// protocol.
type Postgres struct {
	pool *pgxpool.Pool
	dsn  string
}

// OpenPostgres connects a pool for dsn sized for maxConns concurrent
// writers (0 keeps the pgx default).
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	pool, err := db.NewPool(ctx, dsn, maxConns)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, dsn: dsn}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool, dsn string) *Postgres {
	return &Postgres{pool: pool, dsn: dsn}
}

func (p *Postgres) Capabilities() Capabilities {
	return Capabilities{Dialect: DialectPostgres, BulkCopy: true}
}

func (p *Postgres) DSN() string { return p.dsn }

// Pool exposes the underlying pool.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := p.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

// InsertBatch copies recs outside any transaction. COPY is atomic per
// statement, so the batch lands whole or not at all.
func (p *Postgres) InsertBatch(ctx context.Context, dest model.Destination, recs []model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	n, err := p.pool.CopyFrom(ctx, pgx.Identifier{dest.Table}, dest.ColumnNames(), db.NewRecordSource(recs))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy into %s: %w", dest.Table, err)
	}
	return n, nil
}

func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// pgTx serializes batch writers onto the single connection that owns the
// transaction.
type pgTx struct {
	mu sync.Mutex
	tx pgx.Tx
}

func (t *pgTx) InsertBatch(ctx context.Context, dest model.Destination, recs []model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	// Nested Begin on a pgx.Tx issues SAVEPOINT.
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: savepoint: %w", err)
	}
	n, err := sp.CopyFrom(ctx, pgx.Identifier{dest.Table}, dest.ColumnNames(), db.NewRecordSource(recs))
	if err != nil {
		_ = sp.Rollback(ctx)
		return 0, fmt.Errorf("postgres: copy into %s: %w", dest.Table, err)
	}
	if err := sp.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: release savepoint: %w", err)
	}
	return n, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// CopyCSV streams r into table on a dedicated connection inside its own
// transaction using COPY ... FROM STDIN WITH CSV HEADER. The server skips
// the first line of r. Nothing is committed unless every line is accepted.
func CopyCSV(ctx context.Context, dsn, table string, columns []string, r io.Reader) (int64, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return 0, fmt.Errorf("connect for copy: %w", err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin copy: %w", err)
	}
	defer tx.Rollback(context.Background()) //nolint:errcheck

	tag, err := tx.Conn().PgConn().CopyFrom(ctx, r, CopyCSVStatement(table, columns))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit copy: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CopyCSVStatement builds the COPY command for table and columns, quoting
// every identifier.
func CopyCSVStatement(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH CSV HEADER",
		pgx.Identifier{table}.Sanitize(), strings.Join(quoted, ", "))
}
