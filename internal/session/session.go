// Package session tracks conversation sessions per tenant and user.
// The interface admits both the in-memory store and the SQLite-backed
// one.
package session

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive   Status = "active"
	StatusIdle     Status = "idle"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusIdle, StatusClosed, StatusArchived:
		return true
	}
	return false
}

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session: not found")

// Session is one conversation between a user and the agent.
type Session struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenant_id"`
	UserID    string            `json:"user_id"`
	Channel   string            `json:"channel,omitempty"`
	Status    Status            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Filter narrows a session listing. Zero values match everything.
type Filter struct {
	TenantID string
	UserID   string
	Status   Status
	Limit    int // defaults to 100
	Offset   int
}

// Store is the session persistence contract.
type Store interface {
	// Create opens a new active session. The ID is assigned by the store.
	Create(ctx context.Context, tenantID, userID, channel string) (Session, error)

	// Get returns a session by ID.
	Get(ctx context.Context, id string) (Session, error)

	// Update changes the status and/or metadata. An empty status or nil
	// metadata leaves the field untouched.
	Update(ctx context.Context, id string, status Status, metadata map[string]string) (Session, error)

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// List returns sessions matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]Session, error)

	// Count returns the number of sessions matching the filter.
	Count(ctx context.Context, f Filter) (int, error)
}
