package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stagehand/internal/config"
)

// Store manages registry persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode    = 5
	busyRetryAttempts = 5
	busyBackoffFloor  = 10 * time.Millisecond
	busyBackoffCeil   = 200 * time.Millisecond
)

// connectionPragmas are applied to every fresh connection before the store
// touches any table. WAL keeps the daemon and CLI from blocking each other
// on reads.
var connectionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Open initializes or connects to the registry database under the state
// directory and applies the schema before returning.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare registry directories: %w", err)
	}

	dbPath := cfg.RegistryPath()
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	st := &Store{db: db, path: dbPath}
	if err := st.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	for _, pragma := range connectionPragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Close releases the database handle. Safe on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// isBusy recognizes lock contention by driver error code, falling back to
// the message since wrapped errors can lose the code.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) && coded.Code() == sqliteBusyCode {
		return true
	}
	text := err.Error()
	return strings.Contains(text, "SQLITE_BUSY") || strings.Contains(text, "database is locked")
}

// withBusyRetry runs op up to busyRetryAttempts times, doubling the pause
// while the database reports contention. Non-busy errors return at once.
func withBusyRetry(ctx context.Context, op func() error) error {
	wait := busyBackoffFloor
	for try := 1; ; try++ {
		err := op()
		if err == nil || !isBusy(err) || try == busyRetryAttempts {
			return err
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		if wait *= 2; wait > busyBackoffCeil {
			wait = busyBackoffCeil
		}
	}
}

// execResult runs query with busy retries and returns the sql.Result.
func (s *Store) execResult(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = orBackground(ctx)
	var out sql.Result
	err := withBusyRetry(ctx, func() error {
		r, e := s.db.ExecContext(ctx, query, args...)
		out = r
		return e
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// exec is execResult for callers that do not need the result.
func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.execResult(ctx, query, args...)
	return err
}

// withTx runs fn inside a transaction, rolling back unless fn and the
// commit both succeed. what names the operation in wrapped errors.
func (s *Store) withTx(ctx context.Context, what string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", what, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", what, err)
	}
	return nil
}
