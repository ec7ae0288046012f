package skill

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotPublic is returned when installing a skill its owner has not
// published.
var ErrNotPublic = errors.New("skill: not public")

// Listing is the market's view of a skill, without the manifest body.
type Listing struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Namespace   string   `json:"namespace"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version"`
	Author      string   `json:"author,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Public      bool     `json:"public"`
	TenantID    string   `json:"tenant_id"`
}

// Market lets tenants browse and install public skills. Installing
// copies the skill into the target tenant as a private skill, so later
// changes by the publisher do not propagate.
type Market struct {
	registry *Registry
}

// NewMarket creates a Market over the registry.
func NewMarket(registry *Registry) *Market {
	return &Market{registry: registry}
}

// Browse lists active skills visible to the tenant, optionally narrowed
// by a category tag or a free-text query.
func (m *Market) Browse(ctx context.Context, tenantID, category, query string, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 20
	}

	var (
		skills []Skill
		err    error
	)
	if query != "" {
		var tags []string
		if category != "" {
			tags = []string{category}
		}
		skills, err = m.registry.Search(ctx, tenantID, query, tags, limit)
	} else {
		active := true
		f := ListFilter{IncludePublic: true, Active: &active, Limit: limit}
		if category != "" {
			f.Tags = []string{category}
		}
		skills, err = m.registry.List(ctx, tenantID, f)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Listing, len(skills))
	for i, s := range skills {
		out[i] = Listing{
			ID:          s.ID,
			Name:        s.Name,
			Namespace:   s.Namespace,
			Description: s.Description,
			Version:     s.Version,
			Author:      s.Author,
			Tags:        s.Tags,
			Public:      s.Public,
			TenantID:    s.TenantID,
		}
	}
	return out, nil
}

// Install copies a public skill into the target tenant. Installing a
// name the tenant already has returns the existing skill unchanged.
func (m *Market) Install(ctx context.Context, sourceID, targetTenantID, namespace string) (Skill, error) {
	source, err := m.registry.Get(ctx, sourceID)
	if err != nil {
		return Skill{}, err
	}
	if !source.Public {
		return Skill{}, fmt.Errorf("skill: install %s: %w", sourceID, ErrNotPublic)
	}
	if namespace == "" {
		namespace = defaultNamespace
	}

	if existing, err := m.registry.GetByName(ctx, targetTenantID, source.Name, namespace); err == nil {
		return existing, nil
	}

	return m.registry.Register(ctx, RegisterParams{
		TenantID:            targetTenantID,
		Name:                source.Name,
		Namespace:           namespace,
		Description:         source.Description,
		Version:             source.Version,
		Manifest:            source.Manifest,
		Public:              false,
		RequiredPermissions: source.RequiredPermissions,
		Author:              source.Author,
		Tags:                source.Tags,
		Config:              source.Config,
	})
}

// Uninstall removes a skill owned by the tenant. A foreign skill ID
// surfaces the generic ErrNotFound.
func (m *Market) Uninstall(ctx context.Context, tenantID, skillID string) error {
	s, err := m.registry.Get(ctx, skillID)
	if err != nil {
		return err
	}
	if s.TenantID != tenantID {
		return ErrNotFound
	}
	return m.registry.Delete(ctx, skillID)
}
