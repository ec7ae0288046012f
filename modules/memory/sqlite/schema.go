package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application. The keyword index
// is not persisted; it is rebuilt from the records table at provision
// time.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id               TEXT PRIMARY KEY,
		tenant_id        TEXT    NOT NULL,
		user_id          TEXT    NOT NULL,
		content          TEXT    NOT NULL DEFAULT '',
		memory_type      TEXT    NOT NULL DEFAULT 'long_term',
		tags             TEXT    NOT NULL DEFAULT '[]',
		importance       INTEGER NOT NULL DEFAULT 0,
		pinned           INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT    NOT NULL,
		last_accessed_at TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_records_tenant ON records(tenant_id)`,

	`CREATE INDEX IF NOT EXISTS idx_records_tenant_user ON records(tenant_id, user_id)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		tenant_id  TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		channel    TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT 'active',
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_tenant ON sessions(tenant_id, user_id)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	// Ensure schema_version table exists first.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
