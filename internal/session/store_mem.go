package session

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps sessions in a map. It is the default store when
// no persistent backend is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (s *InMemoryStore) Create(_ context.Context, tenantID, userID, channel string) (Session, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Session{}, &FieldError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(userID) == "" {
		return Session{}, &FieldError{Field: "user_id", Reason: "must not be empty"}
	}

	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Channel:   channel,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return cloneSession(sess), nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *InMemoryStore) Update(_ context.Context, id string, status Status, metadata map[string]string) (Session, error) {
	if status != "" && !ValidStatus(status) {
		return Session{}, &FieldError{Field: "status", Reason: "unknown status"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if status != "" {
		sess.Status = status
	}
	if metadata != nil {
		sess.Metadata = metadata
	}
	sess.UpdatedAt = s.now().UTC()
	s.sessions[id] = sess
	return cloneSession(sess), nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, f Filter) ([]Session, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	matched := make([]Session, 0)
	for _, sess := range s.sessions {
		if matchesFilter(sess, f) {
			matched = append(matched, cloneSession(sess))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Session) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if a.CreatedAt.After(b.CreatedAt) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	if f.Offset >= len(matched) {
		return []Session{}, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) Count(_ context.Context, f Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if matchesFilter(sess, f) {
			n++
		}
	}
	return n, nil
}

func matchesFilter(sess Session, f Filter) bool {
	if f.TenantID != "" && sess.TenantID != f.TenantID {
		return false
	}
	if f.UserID != "" && sess.UserID != f.UserID {
		return false
	}
	if f.Status != "" && sess.Status != f.Status {
		return false
	}
	return true
}

func cloneSession(sess Session) Session {
	out := sess
	if sess.Metadata != nil {
		out.Metadata = make(map[string]string, len(sess.Metadata))
		for k, v := range sess.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
