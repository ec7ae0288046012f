// Package skill holds the tenant-scoped skill registry and the market
// that lets tenants install each other's public skills.
package skill

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Skill is one installable capability. The manifest carries the
// markdown body the agent runtime loads.
type Skill struct {
	ID                  string         `json:"id"`
	TenantID            string         `json:"tenant_id"`
	Name                string         `json:"name"`
	Namespace           string         `json:"namespace"`
	Description         string         `json:"description,omitempty"`
	Version             string         `json:"version"`
	Manifest            string         `json:"manifest,omitempty"`
	Active              bool           `json:"active"`
	Public              bool           `json:"public"`
	RequiredPermissions []string       `json:"required_permissions,omitempty"`
	Author              string         `json:"author,omitempty"`
	Tags                []string       `json:"tags,omitempty"`
	Config              map[string]any `json:"config,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (s Skill) clone() Skill {
	out := s
	if s.RequiredPermissions != nil {
		out.RequiredPermissions = append([]string(nil), s.RequiredPermissions...)
	}
	if s.Tags != nil {
		out.Tags = append([]string(nil), s.Tags...)
	}
	if s.Config != nil {
		out.Config = make(map[string]any, len(s.Config))
		for k, v := range s.Config {
			out.Config[k] = v
		}
	}
	return out
}

// hasAnyTag reports whether the skill carries at least one of the given
// tags. An empty filter matches everything.
func (s Skill) hasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range s.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// skillID derives a stable ID from the tenant and name, so a tenant
// cannot register the same name twice.
func skillID(tenantID, name string) string {
	sum := sha256.Sum256([]byte(tenantID + ":" + name))
	return hex.EncodeToString(sum[:8])
}
