// Package migrations creates and versions the local DuckDB schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migration list is append-only; versions already recorded in
// schema_migrations are skipped.
var migrations = []struct {
	version int
	stmt    string
}{
	{
		version: 1,
		stmt: `
			CREATE TABLE IF NOT EXISTS job_runs (
				job_id BIGINT NOT NULL,
				pool_id VARCHAR NOT NULL,
				workload VARCHAR NOT NULL DEFAULT '',
				status VARCHAR NOT NULL,
				result VARCHAR NOT NULL DEFAULT '',
				error VARCHAR NOT NULL DEFAULT '',
				submitted_at TIMESTAMP,
				finished_at TIMESTAMP
			)`,
	},
	{
		version: 2,
		stmt:    `CREATE INDEX IF NOT EXISTS idx_job_runs_status ON job_runs (status)`,
	},
}

// Run applies all pending migrations in order.
func Run(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return err
		}
		zap.S().Named("migrations").Debugw("migration applied", "version", m.version)
	}
	return nil
}
