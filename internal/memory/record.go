// Package memory implements the tenant-scoped ranked memory store: a
// record store, an incremental per-tenant keyword index, a deterministic
// ranker, a capacity/pinning lifecycle policy, and the Service façade that
// composes them.
package memory

import "time"

// MemoryType classifies a record's retention class. It affects eviction
// preference (when configured) but never search eligibility.
type MemoryType string

const (
	ShortTerm MemoryType = "short_term"
	LongTerm  MemoryType = "long_term"
)

// MaxImportance is the inclusive upper bound of the importance scale.
const MaxImportance = 10

// Record is a single memory entry owned by exactly one tenant and user.
// ID, TenantID, UserID and Content are immutable after creation; content
// changes are modeled as delete + re-add so the keyword index never has to
// diff old against new tokens.
type Record struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	UserID         string     `json:"user_id"`
	Content        string     `json:"content"`
	Type           MemoryType `json:"memory_type"`
	Tags           []string   `json:"tags,omitempty"`
	Importance     int        `json:"importance"`
	Pinned         bool       `json:"pinned"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
}

// Clone returns a deep copy of the record so callers can never mutate
// stored state through a returned value.
func (r Record) Clone() Record {
	cp := r
	if r.Tags != nil {
		cp.Tags = make([]string, len(r.Tags))
		copy(cp.Tags, r.Tags)
	}
	return cp
}

// ValidTenantScope reports whether the record belongs to the given tenant.
func (r Record) ValidTenantScope(tenantID string) bool {
	return r.TenantID == tenantID
}

// ValidateRecord checks the structural invariants every stored record must
// satisfy. Out-of-range importance is rejected, never clamped.
func ValidateRecord(r Record) error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if r.TenantID == "" {
		return &ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if r.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if r.Importance < 0 || r.Importance > MaxImportance {
		return &ValidationError{Field: "importance", Reason: "must be between 0 and 10"}
	}
	switch r.Type {
	case ShortTerm, LongTerm:
	default:
		return &ValidationError{Field: "memory_type", Reason: "must be short_term or long_term"}
	}
	return nil
}
