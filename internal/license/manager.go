package license

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown license IDs or keys.
	ErrNotFound = errors.New("license: not found")

	// ErrInvalidType is returned when issuing with an unknown type.
	ErrInvalidType = errors.New("license: invalid type")
)

// IssueParams describe a license to be created.
type IssueParams struct {
	TenantID         string
	Type             Type
	MaxUsers         int
	MaxConversations int
	MaxMemories      int // 0 means unbounded
	Days             int // validity window, default 365
	Features         map[string]bool
}

// Manager issues and tracks licenses. Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	licenses map[string]License
	keys     map[string]string // license key -> license ID
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		licenses: make(map[string]License),
		keys:     make(map[string]string),
		logger:   logger.With("component", "license"),
		now:      time.Now,
	}
}

// Issue creates an active license for a tenant and returns it with the
// activation key. The key is shown once; only its mapping is retained.
func (m *Manager) Issue(_ context.Context, p IssueParams) (License, string, error) {
	if strings.TrimSpace(p.TenantID) == "" {
		return License{}, "", errors.New("license: tenant_id must not be empty")
	}
	if !ValidType(p.Type) {
		return License{}, "", ErrInvalidType
	}
	days := p.Days
	if days <= 0 {
		days = 365
	}

	now := m.now().UTC()
	lic := License{
		ID:               uuid.NewString(),
		TenantID:         p.TenantID,
		Type:             p.Type,
		Status:           StatusActive,
		MaxUsers:         p.MaxUsers,
		MaxConversations: p.MaxConversations,
		MaxMemories:      p.MaxMemories,
		IssuedAt:         now,
		ExpiresAt:        now.AddDate(0, 0, days),
		Features:         p.Features,
	}
	key := keyPrefix(p.Type) + "-" + strings.ToUpper(randomHex(16))

	m.mu.Lock()
	m.licenses[lic.ID] = lic.clone()
	m.keys[key] = lic.ID
	m.mu.Unlock()

	m.logger.Info("license issued",
		"license", lic.ID,
		"tenant", p.TenantID,
		"type", p.Type,
		"expires_at", lic.ExpiresAt,
	)
	return lic, key, nil
}

// Activate resolves a license key and reactivates the license if it had
// lapsed to expired. Suspended and revoked licenses stay as they are.
func (m *Manager) Activate(_ context.Context, key string) (License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.keys[key]
	if !ok {
		return License{}, ErrNotFound
	}
	lic, ok := m.licenses[id]
	if !ok {
		return License{}, ErrNotFound
	}
	if lic.Status == StatusExpired {
		lic.Status = StatusActive
		m.licenses[id] = lic
	}
	return lic.clone(), nil
}

// Get returns a license by ID.
func (m *Manager) Get(_ context.Context, id string) (License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lic, ok := m.licenses[id]
	if !ok {
		return License{}, ErrNotFound
	}
	return lic.clone(), nil
}

// ForTenant returns the tenant's currently valid license.
func (m *Manager) ForTenant(_ context.Context, tenantID string) (License, error) {
	now := m.now().UTC()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, lic := range m.licenses {
		if lic.TenantID == tenantID && lic.Valid(now) {
			return lic.clone(), nil
		}
	}
	return License{}, ErrNotFound
}

// ValidateUsage reports whether the given usage fits within the
// license's limits. Invalid licenses admit nothing.
func (m *Manager) ValidateUsage(_ context.Context, id string, users, conversations int) bool {
	now := m.now().UTC()
	m.mu.RLock()
	defer m.mu.RUnlock()
	lic, ok := m.licenses[id]
	if !ok || !lic.Valid(now) {
		return false
	}
	return users <= lic.MaxUsers && conversations <= lic.MaxConversations
}

// Revoke marks a license revoked. Revocation is terminal.
func (m *Manager) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lic, ok := m.licenses[id]
	if !ok {
		return ErrNotFound
	}
	lic.Status = StatusRevoked
	m.licenses[id] = lic
	m.logger.Info("license revoked", "license", id, "tenant", lic.TenantID)
	return nil
}

// List returns all licenses ordered by tenant then ID.
func (m *Manager) List(_ context.Context) ([]License, error) {
	m.mu.RLock()
	out := make([]License, 0, len(m.licenses))
	for _, lic := range m.licenses {
		out = append(out, lic.clone())
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b License) int {
		if c := strings.Compare(a.TenantID, b.TenantID); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// SweepExpired transitions active licenses past their expiry to the
// expired status and returns how many lapsed. Run periodically by the
// scheduler.
func (m *Manager) SweepExpired(_ context.Context) (int, error) {
	now := m.now().UTC()
	lapsed := 0

	m.mu.Lock()
	for id, lic := range m.licenses {
		if lic.Status == StatusActive && !now.Before(lic.ExpiresAt) {
			lic.Status = StatusExpired
			m.licenses[id] = lic
			lapsed++
		}
	}
	m.mu.Unlock()

	if lapsed > 0 {
		m.logger.Info("licenses lapsed to expired", "count", lapsed)
	}
	return lapsed, nil
}
