package skill

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned for unknown skill IDs.
	ErrNotFound = errors.New("skill: not found")

	// ErrAlreadyExists is returned when a tenant registers a name twice
	// in the same namespace.
	ErrAlreadyExists = errors.New("skill: already exists")
)

const defaultNamespace = "default"

// RegisterParams describe a skill to be registered.
type RegisterParams struct {
	TenantID            string
	Name                string
	Namespace           string // defaults to "default"
	Description         string
	Version             string // defaults to "1.0.0"
	Manifest            string
	Public              bool
	RequiredPermissions []string
	Author              string
	Tags                []string
	Config              map[string]any
}

// UpdateParams carry the mutable fields of a skill. Nil pointers leave
// the current value untouched.
type UpdateParams struct {
	Manifest    *string
	Description *string
	Version     *string
	Active      *bool
	Public      *bool
	Tags        []string
	Config      map[string]any
}

// ListFilter narrows a listing.
type ListFilter struct {
	Namespace     string
	Active        *bool
	IncludePublic bool // include other tenants' public skills
	Tags          []string
	Limit         int // defaults to 100
}

// Registry is the in-process skill store. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
	now    func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		skills: make(map[string]Skill),
		now:    time.Now,
	}
}

// Register adds a skill under a tenant. The ID derives from tenant and
// name; registering the same name twice fails.
func (r *Registry) Register(_ context.Context, p RegisterParams) (Skill, error) {
	if strings.TrimSpace(p.TenantID) == "" {
		return Skill{}, errors.New("skill: tenant_id must not be empty")
	}
	if strings.TrimSpace(p.Name) == "" {
		return Skill{}, errors.New("skill: name must not be empty")
	}
	if p.Namespace == "" {
		p.Namespace = defaultNamespace
	}
	if p.Version == "" {
		p.Version = "1.0.0"
	}

	now := r.now().UTC()
	s := Skill{
		ID:                  skillID(p.TenantID, p.Name),
		TenantID:            p.TenantID,
		Name:                p.Name,
		Namespace:           p.Namespace,
		Description:         p.Description,
		Version:             p.Version,
		Manifest:            p.Manifest,
		Active:              true,
		Public:              p.Public,
		RequiredPermissions: p.RequiredPermissions,
		Author:              p.Author,
		Tags:                p.Tags,
		Config:              p.Config,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.skills[s.ID]; taken {
		return Skill{}, fmt.Errorf("skill: register %s/%s: %w", p.TenantID, p.Name, ErrAlreadyExists)
	}
	r.skills[s.ID] = s.clone()
	return s, nil
}

// Get returns a skill by ID.
func (r *Registry) Get(_ context.Context, id string) (Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	if !ok {
		return Skill{}, ErrNotFound
	}
	return s.clone(), nil
}

// GetByName resolves a tenant's skill by name and namespace.
func (r *Registry) GetByName(_ context.Context, tenantID, name, namespace string) (Skill, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[skillID(tenantID, name)]
	if !ok || s.Namespace != namespace {
		return Skill{}, ErrNotFound
	}
	return s.clone(), nil
}

// Update applies the given changes and bumps updated_at.
func (r *Registry) Update(_ context.Context, id string, p UpdateParams) (Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.skills[id]
	if !ok {
		return Skill{}, ErrNotFound
	}
	if p.Manifest != nil {
		s.Manifest = *p.Manifest
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Version != nil {
		s.Version = *p.Version
	}
	if p.Active != nil {
		s.Active = *p.Active
	}
	if p.Public != nil {
		s.Public = *p.Public
	}
	if p.Tags != nil {
		s.Tags = append([]string(nil), p.Tags...)
	}
	if p.Config != nil {
		s.Config = p.Config
	}
	s.UpdatedAt = r.now().UTC()
	r.skills[id] = s.clone()
	return s, nil
}

// Delete removes a skill.
func (r *Registry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[id]; !ok {
		return ErrNotFound
	}
	delete(r.skills, id)
	return nil
}

// List returns the tenant's skills, plus other tenants' public skills
// when the filter asks for them, ordered by updated_at descending.
func (r *Registry) List(_ context.Context, tenantID string, f ListFilter) ([]Skill, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	out := make([]Skill, 0)
	for _, s := range r.skills {
		owned := s.TenantID == tenantID && tenantID != ""
		foreign := f.IncludePublic && s.Public && s.TenantID != tenantID
		if !owned && !foreign {
			continue
		}
		if f.Namespace != "" && s.Namespace != f.Namespace {
			continue
		}
		if f.Active != nil && s.Active != *f.Active {
			continue
		}
		if !s.hasAnyTag(f.Tags) {
			continue
		}
		out = append(out, s.clone())
	}
	r.mu.RUnlock()

	sortByUpdated(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Search matches the query as a case-insensitive substring of the name
// or description, over the tenant's own and all public skills.
func (r *Registry) Search(ctx context.Context, tenantID, query string, tags []string, limit int) ([]Skill, error) {
	if limit <= 0 {
		limit = 10
	}
	total, err := r.Count(ctx, "")
	if err != nil {
		return nil, err
	}
	all, err := r.List(ctx, tenantID, ListFilter{IncludePublic: true, Tags: tags, Limit: total + 1})
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	out := make([]Skill, 0, len(all))
	for _, s := range all {
		if q != "" &&
			!strings.Contains(strings.ToLower(s.Name), q) &&
			!strings.Contains(strings.ToLower(s.Description), q) {
			continue
		}
		out = append(out, s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CheckPermission reports whether a user holding the given permissions
// may invoke the skill. Skills without requirements are open.
func (r *Registry) CheckPermission(_ context.Context, id string, userPermissions []string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	if !ok {
		return false, ErrNotFound
	}
	if len(s.RequiredPermissions) == 0 {
		return true, nil
	}
	for _, required := range s.RequiredPermissions {
		if slices.Contains(userPermissions, required) {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of skills, scoped to one tenant when
// tenantID is non-empty.
func (r *Registry) Count(_ context.Context, tenantID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tenantID == "" {
		return len(r.skills), nil
	}
	n := 0
	for _, s := range r.skills {
		if s.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func sortByUpdated(skills []Skill) {
	slices.SortFunc(skills, func(a, b Skill) int {
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if a.UpdatedAt.After(b.UpdatedAt) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}
