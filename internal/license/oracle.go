package license

import (
	"context"
	"errors"
	"fmt"
)

// CountFunc reports how many memory records a tenant currently owns.
// It is wired to the record store directly, not the memory service: the
// oracle is consulted while the service holds the tenant's write lock.
type CountFunc func(ctx context.Context, tenantID string) (int, error)

// Oracle adapts the license manager into the memory subsystem's quota
// contract. A tenant without a valid license has zero remaining
// capacity; a license with MaxMemories == 0 is unbounded.
type Oracle struct {
	manager *Manager
	count   CountFunc
}

// NewOracle builds an Oracle over the manager and a record counter.
func NewOracle(manager *Manager, count CountFunc) *Oracle {
	return &Oracle{manager: manager, count: count}
}

// RemainingCapacity implements the memory subsystem's UsageOracle.
func (o *Oracle) RemainingCapacity(ctx context.Context, tenantID string) (int, bool, error) {
	lic, err := o.manager.ForTenant(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("license: lookup for tenant %s: %w", tenantID, err)
	}
	if lic.MaxMemories == 0 {
		return 0, true, nil
	}

	used, err := o.count(ctx, tenantID)
	if err != nil {
		return 0, false, fmt.Errorf("license: usage count for tenant %s: %w", tenantID, err)
	}
	remaining := lic.MaxMemories - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, false, nil
}
