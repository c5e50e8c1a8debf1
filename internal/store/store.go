// Package store adapts relational databases to the batch-insert and bulk
// copy operations the ingest loaders need.
package store

import (
	"context"
	"errors"

	"github.com/AndriyPolukhin/app-aiv/internal/model"
)

// Dialect names a supported backend.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ErrBulkCopyUnsupported is returned by stores without a native copy path.
var ErrBulkCopyUnsupported = errors.New("store does not support native bulk copy")

// Capabilities describes what a store can do beyond batch inserts.
type Capabilities struct {
	Dialect  string
	BulkCopy bool
}

// Inserter writes one batch of records atomically: either every record in
// the batch lands or none does.
type Inserter interface {
	InsertBatch(ctx context.Context, dest model.Destination, recs []model.Record) (int64, error)
}

// Tx is a store transaction shared by concurrent batch writers. Each
// InsertBatch runs in its own savepoint, so a rejected batch rolls back
// only itself.
type Tx interface {
	Inserter
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the relational backend an import writes into.
type Store interface {
	Inserter
	Capabilities() Capabilities
	Begin(ctx context.Context) (Tx, error)
	Exec(ctx context.Context, sql string) error
	Close()
}

// Connector is implemented by stores that can hand out their connection
// string for a dedicated session.
type Connector interface {
	DSN() string
}

// Open picks the backend from the DSN: sqlite: and file: prefixes or a
// .db/.sqlite path select SQLite, anything else Postgres. maxConns sizes
// the Postgres pool and is ignored for SQLite.
func Open(ctx context.Context, dsn string, maxConns int32) (Store, error) {
	if path, ok := sqlitePath(dsn); ok {
		return OpenSQLite(ctx, path)
	}
	return OpenPostgres(ctx, dsn, maxConns)
}

// CapabilitiesFor reports what Open would return for dsn without
// connecting.
func CapabilitiesFor(dsn string) Capabilities {
	if _, ok := sqlitePath(dsn); ok {
		return Capabilities{Dialect: DialectSQLite}
	}
	return Capabilities{Dialect: DialectPostgres, BulkCopy: true}
}
