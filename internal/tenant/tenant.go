// Package tenant holds the tenant and user directory. Every other
// subsystem scopes its data by tenant ID and consults this package for
// existence, activity, and feature checks.
package tenant

import (
	"strings"
	"time"
)

// Tenant is one isolated customer of the runtime.
type Tenant struct {
	ID               string          `json:"id" yaml:"id"`
	Name             string          `json:"name" yaml:"name"`
	LLMProvider      string          `json:"llm_provider" yaml:"llm_provider"`
	LLMModel         string          `json:"llm_model" yaml:"llm_model"`
	MaxUsers         int             `json:"max_users" yaml:"max_users"`
	MaxConversations int             `json:"max_conversations" yaml:"max_conversations"`
	Features         map[string]bool `json:"features,omitempty" yaml:"features,omitempty"`
	Active           bool            `json:"active" yaml:"active"`
	CreatedAt        time.Time       `json:"created_at" yaml:"-"`
}

// FeatureEnabled reports whether the named feature flag is on. Unknown
// features are off.
func (t Tenant) FeatureEnabled(feature string) bool {
	return t.Features[feature]
}

func (t Tenant) clone() Tenant {
	out := t
	if t.Features != nil {
		out.Features = make(map[string]bool, len(t.Features))
		for k, v := range t.Features {
			out.Features[k] = v
		}
	}
	return out
}

// User belongs to exactly one tenant and carries a flat permission list.
type User struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasPermission reports whether the user carries the named permission,
// or the wildcard.
func (u User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission || p == "*" {
			return true
		}
	}
	return false
}

func (u User) clone() User {
	out := u
	if u.Permissions != nil {
		out.Permissions = append([]string(nil), u.Permissions...)
	}
	return out
}

func validateTenant(t Tenant) error {
	if strings.TrimSpace(t.ID) == "" {
		return errField("id", "must not be empty")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errField("name", "must not be empty")
	}
	if t.MaxUsers < 0 || t.MaxConversations < 0 {
		return errField("limits", "must not be negative")
	}
	return nil
}

func validateUser(u User) error {
	if strings.TrimSpace(u.ID) == "" {
		return errField("id", "must not be empty")
	}
	if strings.TrimSpace(u.TenantID) == "" {
		return errField("tenant_id", "must not be empty")
	}
	return nil
}
