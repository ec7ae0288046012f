package memory

import (
	"context"
	"time"
)

// ListFilter narrows a tenant listing. Zero values mean "no filter".
type ListFilter struct {
	UserID string
	Type   MemoryType
}

// RecordStore owns canonical record storage keyed by ID. It is scope
// agnostic: tenant ownership checks happen in the Service, which never
// reads a record on behalf of a caller without verifying the tenant first.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// Put stores a record, replacing any existing record with the same ID.
	// Records failing ValidateRecord are rejected with a ValidationError.
	Put(ctx context.Context, r Record) error

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Delete removes the record with the given ID, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns all of a tenant's records matching the filter, in
	// unspecified order.
	List(ctx context.Context, tenantID string, filter ListFilter) ([]Record, error)

	// Count returns the number of records for a tenant, optionally
	// narrowed to a single user.
	Count(ctx context.Context, tenantID, userID string) (int, error)

	// Tenants returns the IDs of all tenants that currently own records.
	Tenants(ctx context.Context) ([]string, error)

	// Touch sets last_accessed_at on the given records. Unknown IDs are
	// ignored; access bookkeeping must never fail a read.
	Touch(ctx context.Context, ids []string, at time.Time) error
}
