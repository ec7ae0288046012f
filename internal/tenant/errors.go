package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for lookups of unknown tenants or users.
	ErrNotFound = errors.New("tenant: not found")

	// ErrAlreadyExists is returned when creating a tenant or user whose
	// ID is taken.
	ErrAlreadyExists = errors.New("tenant: already exists")

	// ErrInactive is returned when authenticating against a suspended
	// tenant.
	ErrInactive = errors.New("tenant: inactive")

	// ErrUserLimit is returned when a tenant's max_users is reached.
	ErrUserLimit = errors.New("tenant: user limit reached")
)

// FieldError reports an invalid field on a tenant or user.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("tenant: invalid %s: %s", e.Field, e.Reason)
}

func errField(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
