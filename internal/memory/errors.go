package memory

import (
	"errors"
	"fmt"
)

// Sentinel errors for memory operations. A cross-tenant probe always
// surfaces the generic ErrNotFound so an unauthorized tenant cannot learn
// whether a record exists.
var (
	// ErrNotFound indicates the record does not exist within the caller's
	// tenant scope.
	ErrNotFound = errors.New("memory: record not found")

	// ErrTenantNotFound indicates the tenant is unknown to the directory.
	ErrTenantNotFound = errors.New("memory: tenant not found")

	// ErrQuotaExceeded indicates the tenant has no remaining record quota.
	// Surfaced as a distinct kind so callers can present upgrade messaging.
	ErrQuotaExceeded = errors.New("memory: tenant quota exceeded")
)

// ValidationError reports malformed input. It is always surfaced to the
// caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("memory: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
