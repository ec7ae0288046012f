package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/beaconlabs/hivemind/internal/memory"
)

// recordStore implements memory.RecordStore backed by SQLite.
type recordStore struct {
	db *sql.DB
}

const recordColumns = "id, tenant_id, user_id, content, memory_type, tags, importance, pinned, created_at, last_accessed_at"

// Put stores or replaces a record.
func (s *recordStore) Put(ctx context.Context, rec memory.Record) error {
	if err := memory.ValidateRecord(rec); err != nil {
		return err
	}

	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: marshal tags: %w", err)
	}

	pinned := 0
	if rec.Pinned {
		pinned = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.UserID, rec.Content, string(rec.Type),
		string(tagsJSON), rec.Importance, pinned,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.LastAccessedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put record: %w", err)
	}
	return nil
}

// Get returns a record by ID.
func (s *recordStore) Get(ctx context.Context, id string) (memory.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = ?", id)

	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return memory.Record{}, memory.ErrNotFound
	}
	if err != nil {
		return memory.Record{}, err
	}
	return rec, nil
}

// Delete removes a record by ID.
func (s *recordStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// List returns a tenant's records matching the filter.
func (s *recordStore) List(ctx context.Context, tenantID string, f memory.ListFilter) ([]memory.Record, error) {
	query := "SELECT " + recordColumns + " FROM records WHERE tenant_id = ?"
	args := []any{tenantID}
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		query += " AND memory_type = ?"
		args = append(args, string(f.Type))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list records rows: %w", err)
	}
	return out, nil
}

// Count returns the number of a tenant's records, optionally narrowed to
// one user.
func (s *recordStore) Count(ctx context.Context, tenantID, userID string) (int, error) {
	query := "SELECT COUNT(*) FROM records WHERE tenant_id = ?"
	args := []any{tenantID}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count records: %w", err)
	}
	return n, nil
}

// Tenants returns the distinct tenant IDs that own records.
func (s *recordStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT tenant_id FROM records ORDER BY tenant_id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan tenant: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: tenants rows: %w", err)
	}
	return out, nil
}

// Touch updates last_accessed_at on the given records. Unknown IDs are
// ignored.
func (s *recordStore) Touch(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, at.UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE records SET last_accessed_at = ? WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("sqlite: touch records: %w", err)
	}
	return nil
}

func scanRecord(scan func(...any) error) (memory.Record, error) {
	var (
		rec        memory.Record
		typ        string
		tagsJSON   string
		pinned     int
		createdAt  string
		lastAccess string
	)
	err := scan(&rec.ID, &rec.TenantID, &rec.UserID, &rec.Content, &typ,
		&tagsJSON, &rec.Importance, &pinned, &createdAt, &lastAccess)
	if err == sql.ErrNoRows {
		return memory.Record{}, err
	}
	if err != nil {
		return memory.Record{}, fmt.Errorf("sqlite: scan record: %w", err)
	}

	rec.Type = memory.MemoryType(typ)
	rec.Pinned = pinned != 0

	if tagsJSON != "" && tagsJSON != "[]" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
			return memory.Record{}, fmt.Errorf("sqlite: unmarshal tags: %w", err)
		}
	}

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return memory.Record{}, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
	}
	if rec.LastAccessedAt, err = time.Parse(time.RFC3339Nano, lastAccess); err != nil {
		return memory.Record{}, fmt.Errorf("sqlite: parse last_accessed_at %q: %w", lastAccess, err)
	}
	return rec, nil
}
