package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaDDL string

// schemaVersion is bumped whenever schema.sql changes shape. There is no
// migration path; a mismatched registry must be cleared or deleted.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// schema version.
var ErrSchemaMismatch = errors.New("registry schema mismatch")

func (s *Store) ensureSchema(ctx context.Context) error {
	var name string
	probe := "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'"
	err := s.db.QueryRowContext(ctx, probe).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh database.
		return s.bootstrapSchema(ctx)
	case err != nil:
		return fmt.Errorf("probe schema_version table: %w", err)
	}
	return s.verifySchemaVersion(ctx)
}

func (s *Store) verifySchemaVersion(ctx context.Context) error {
	var have int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&have); err != nil {
		return fmt.Errorf("read stored schema version: %w", err)
	}
	if have == schemaVersion {
		return nil
	}
	return fmt.Errorf("%w: database has version %d, expected %d (run 'stagehand jobs clear' or delete the database)",
		ErrSchemaMismatch, have, schemaVersion)
}

func (s *Store) bootstrapSchema(ctx context.Context) error {
	return s.withTx(ctx, "schema", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
}
