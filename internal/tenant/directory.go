package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Directory is the in-process tenant and user registry. All methods are
// safe for concurrent use. It satisfies the memory subsystem's
// TenantDirectory contract through Exists.
type Directory struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
	users   map[string]User
	logger  *slog.Logger
}

// NewDirectory creates an empty Directory.
func NewDirectory(logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		tenants: make(map[string]Tenant),
		users:   make(map[string]User),
		logger:  logger.With("component", "tenant"),
	}
}

// Create registers a new tenant. The ID must be unused.
func (d *Directory) Create(_ context.Context, t Tenant) (Tenant, error) {
	if err := validateTenant(t); err != nil {
		return Tenant{}, err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, taken := d.tenants[t.ID]; taken {
		return Tenant{}, fmt.Errorf("tenant: create %s: %w", t.ID, ErrAlreadyExists)
	}
	d.tenants[t.ID] = t.clone()
	d.logger.Info("tenant created", "tenant", t.ID, "name", t.Name)
	return t, nil
}

// Get returns a tenant by ID.
func (d *Directory) Get(_ context.Context, tenantID string) (Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tenants[tenantID]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t.clone(), nil
}

// List returns all tenants ordered by ID.
func (d *Directory) List(_ context.Context) ([]Tenant, error) {
	d.mu.RLock()
	out := make([]Tenant, 0, len(d.tenants))
	for _, t := range d.tenants {
		out = append(out, t.clone())
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b Tenant) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Update replaces an existing tenant's configuration. The ID and
// creation time are immutable.
func (d *Directory) Update(_ context.Context, t Tenant) (Tenant, error) {
	if err := validateTenant(t); err != nil {
		return Tenant{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.tenants[t.ID]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	t.CreatedAt = current.CreatedAt
	d.tenants[t.ID] = t.clone()
	return t, nil
}

// Delete removes a tenant and every user registered under it.
func (d *Directory) Delete(_ context.Context, tenantID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tenants[tenantID]; !ok {
		return ErrNotFound
	}
	delete(d.tenants, tenantID)
	for id, u := range d.users {
		if u.TenantID == tenantID {
			delete(d.users, id)
		}
	}
	d.logger.Info("tenant deleted", "tenant", tenantID)
	return nil
}

// Exists reports whether an active tenant with the given ID is
// registered. Suspended tenants do not exist for scoping purposes.
func (d *Directory) Exists(_ context.Context, tenantID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tenants[tenantID]
	return ok && t.Active, nil
}

// SetActive toggles a tenant's active flag.
func (d *Directory) SetActive(_ context.Context, tenantID string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tenants[tenantID]
	if !ok {
		return ErrNotFound
	}
	t.Active = active
	d.tenants[tenantID] = t
	return nil
}

// RegisterUser adds a user under an existing tenant, enforcing the
// tenant's max_users limit when it is positive.
func (d *Directory) RegisterUser(_ context.Context, u User) (User, error) {
	if err := validateUser(u); err != nil {
		return User{}, err
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tenants[u.TenantID]
	if !ok {
		return User{}, ErrNotFound
	}
	if _, taken := d.users[u.ID]; taken {
		return User{}, fmt.Errorf("tenant: register user %s: %w", u.ID, ErrAlreadyExists)
	}
	if t.MaxUsers > 0 && d.userCountLocked(u.TenantID) >= t.MaxUsers {
		return User{}, ErrUserLimit
	}
	d.users[u.ID] = u.clone()
	return u, nil
}

// User returns a user by ID.
func (d *Directory) User(_ context.Context, userID string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u.clone(), nil
}

// Users lists a tenant's users ordered by ID.
func (d *Directory) Users(_ context.Context, tenantID string) ([]User, error) {
	d.mu.RLock()
	out := make([]User, 0)
	for _, u := range d.users {
		if u.TenantID == tenantID {
			out = append(out, u.clone())
		}
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b User) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// RemoveUser deletes a user.
func (d *Directory) RemoveUser(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[userID]; !ok {
		return ErrNotFound
	}
	delete(d.users, userID)
	return nil
}

// Authenticate verifies that the user exists, belongs to the claimed
// tenant, and that the tenant is active. A tenant mismatch reports the
// same ErrNotFound as an unknown user.
func (d *Directory) Authenticate(_ context.Context, userID, tenantID string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok || u.TenantID != tenantID {
		return User{}, ErrNotFound
	}
	t, ok := d.tenants[tenantID]
	if !ok {
		return User{}, ErrNotFound
	}
	if !t.Active {
		return User{}, ErrInactive
	}
	return u.clone(), nil
}

func (d *Directory) userCountLocked(tenantID string) int {
	n := 0
	for _, u := range d.users {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n
}
