package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/beaconlabs/hivemind/internal/session"
	"github.com/google/uuid"
)

// sessionStore implements session.Store backed by SQLite.
type sessionStore struct {
	db *sql.DB
}

const sessionColumns = "id, tenant_id, user_id, channel, status, metadata, created_at, updated_at"

func (s *sessionStore) Create(ctx context.Context, tenantID, userID, channel string) (session.Session, error) {
	if strings.TrimSpace(tenantID) == "" {
		return session.Session{}, &session.FieldError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(userID) == "" {
		return session.Session{}, &session.FieldError{Field: "user_id", Reason: "must not be empty"}
	}

	now := time.Now().UTC()
	sess := session.Session{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Channel:   channel,
		Status:    session.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, '{}', ?, ?)`,
		sess.ID, sess.TenantID, sess.UserID, sess.Channel, string(sess.Status),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlite: create session: %w", err)
	}
	return sess, nil
}

func (s *sessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *sessionStore) Update(ctx context.Context, id string, status session.Status, metadata map[string]string) (session.Session, error) {
	if status != "" && !session.ValidStatus(status) {
		return session.Session{}, &session.FieldError{Field: "status", Reason: "unknown status"}
	}

	sess, err := s.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if status != "" {
		sess.Status = status
	}
	if metadata != nil {
		sess.Metadata = metadata
	}
	sess.UpdatedAt = time.Now().UTC()

	metaJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		string(sess.Status), string(metaJSON),
		sess.UpdatedAt.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlite: update session: %w", err)
	}
	return sess, nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *sessionStore) List(ctx context.Context, f session.Filter) ([]session.Session, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + sessionColumns + " FROM sessions WHERE 1=1"
	var args []any
	if f.TenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, f.TenantID)
	}
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	query += " ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []session.Session{}
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list sessions rows: %w", err)
	}
	return out, nil
}

func (s *sessionStore) Count(ctx context.Context, f session.Filter) (int, error) {
	query := "SELECT COUNT(*) FROM sessions WHERE 1=1"
	var args []any
	if f.TenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, f.TenantID)
	}
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count sessions: %w", err)
	}
	return n, nil
}

func scanSession(scan func(...any) error) (session.Session, error) {
	var (
		sess      session.Session
		status    string
		metaJSON  string
		createdAt string
		updatedAt string
	)
	err := scan(&sess.ID, &sess.TenantID, &sess.UserID, &sess.Channel, &status,
		&metaJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return session.Session{}, err
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlite: scan session: %w", err)
	}

	sess.Status = session.Status(status)

	if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
			return session.Session{}, fmt.Errorf("sqlite: unmarshal metadata: %w", err)
		}
	}

	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return session.Session{}, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return session.Session{}, fmt.Errorf("sqlite: parse updated_at %q: %w", updatedAt, err)
	}
	return sess, nil
}
