package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryRecordStore is a thread-safe, in-memory implementation of
// RecordStore. It keeps a per-tenant ID set alongside the global record map
// so tenant listings never scan other tenants' records.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]Record
	tenants map[string]map[string]struct{} // tenant ID → record ID set
}

// NewInMemoryRecordStore creates a new empty record store.
func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{
		records: make(map[string]Record),
		tenants: make(map[string]map[string]struct{}),
	}
}

// Compile-time interface check.
var _ RecordStore = (*InMemoryRecordStore)(nil)

// Put stores a record, replacing any existing record with the same ID.
func (s *InMemoryRecordStore) Put(_ context.Context, r Record) error {
	if err := ValidateRecord(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, exists := s.records[r.ID]; exists && prev.TenantID != r.TenantID {
		// IDs are globally unique; a replace must stay within one tenant.
		delete(s.tenants[prev.TenantID], prev.ID)
	}

	s.records[r.ID] = r.Clone()

	ids, ok := s.tenants[r.TenantID]
	if !ok {
		ids = make(map[string]struct{})
		s.tenants[r.TenantID] = ids
	}
	ids[r.ID] = struct{}{}

	return nil
}

// Get returns the record with the given ID, or ErrNotFound.
func (s *InMemoryRecordStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.Clone(), nil
}

// Delete removes the record with the given ID.
func (s *InMemoryRecordStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}

	delete(s.records, id)
	if ids, ok := s.tenants[r.TenantID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.tenants, r.TenantID)
		}
	}
	return nil
}

// List returns all of a tenant's records matching the filter.
func (s *InMemoryRecordStore) List(_ context.Context, tenantID string, filter ListFilter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.tenants[tenantID]
	result := make([]Record, 0, len(ids))
	for id := range ids {
		r := s.records[id]
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		result = append(result, r.Clone())
	}
	return result, nil
}

// Count returns the number of records for a tenant, optionally narrowed
// to a single user.
func (s *InMemoryRecordStore) Count(_ context.Context, tenantID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.tenants[tenantID]
	if userID == "" {
		return len(ids), nil
	}

	n := 0
	for id := range ids {
		if s.records[id].UserID == userID {
			n++
		}
	}
	return n, nil
}

// Tenants returns the IDs of all tenants that currently own records.
func (s *InMemoryRecordStore) Tenants(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenants := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		tenants = append(tenants, id)
	}
	return tenants, nil
}

// Touch sets last_accessed_at on the given records. Unknown IDs are ignored.
func (s *InMemoryRecordStore) Touch(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			r.LastAccessedAt = at
			s.records[id] = r
		}
	}
	return nil
}
