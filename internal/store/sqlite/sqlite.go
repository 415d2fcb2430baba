// Package sqlite implements store.Store on an embedded SQLite
// database. It is the default backend: a single file (or ":memory:"
// in tests), no external service, schema bootstrapped on open.
//
// Connections come from a fixed-size sqlitex pool. Pool is safe for
// concurrent use; individual connections are not, so every method
// takes a connection and puts it back when done.
package sqlite

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/iliyamo/campus-space-reservation/internal/model"
)

// dbTimeLayout is how timestamps are stored in TEXT columns. The
// fixed-width form keeps lexicographic order equal to chronological
// order, so range predicates work as plain string comparisons.
const dbTimeLayout = "2006-01-02 15:04:05"

// Config holds the parameters for opening the SQLite backend.
type Config struct {
	// Path is the database file. Use ":memory:" for an in-memory
	// database; the pool is then forced to a single connection since
	// each in-memory connection would otherwise see its own database.
	Path string

	// PoolSize is the number of pooled connections. Zero or negative
	// defaults to max(runtime.NumCPU(), 4).
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *zap.Logger
}

// Store is the SQLite-backed implementation of store.Store.
type Store struct {
	pool *sqlitex.Pool
	log  *zap.Logger
	path string
}

// Open opens the database file, applies the standard pragmas to every
// pooled connection and bootstraps the schema. The file is created if
// it does not exist.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: Path is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("sqlite: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}
	if cfg.Path == ":memory:" {
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", cfg.Path, err)
	}

	cfg.Logger.Info("base SQLite abierta",
		zap.String("path", cfg.Path),
		zap.Int("pool_size", poolSize),
	)

	return &Store{pool: pool, log: cfg.Logger, path: cfg.Path}, nil
}

// Close closes all pooled connections. Blocks until borrowed
// connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite: closing %s: %w", s.path, err)
	}
	return nil
}

// prepareConn runs once per pooled connection: pragmas first, then the
// idempotent schema script.
func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite: bootstrapping schema: %w", err)
	}
	return nil
}

// take borrows a pooled connection, mapping pool failure (closed pool,
// cancelled context) to the storage-unavailable sentinel.
func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return conn, nil
}

func fmtTime(t time.Time) string {
	return t.Format(dbTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dbTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: timestamp %q: %w", s, err)
	}
	return t, nil
}
