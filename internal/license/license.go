// Package license manages per-tenant licenses: issuance, activation by
// key, expiry, usage validation, and revocation. The memory subsystem
// consumes it through the Oracle adapter.
package license

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// Type grades a license.
type Type string

const (
	Trial        Type = "trial"
	Standard     Type = "standard"
	Professional Type = "professional"
	Enterprise   Type = "enterprise"
)

// ValidType reports whether t is a known license type.
func ValidType(t Type) bool {
	switch t {
	case Trial, Standard, Professional, Enterprise:
		return true
	}
	return false
}

// Status is the lifecycle state of a license.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

// License entitles one tenant to a bounded amount of usage.
type License struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	Type             Type            `json:"type"`
	Status           Status          `json:"status"`
	MaxUsers         int             `json:"max_users"`
	MaxConversations int             `json:"max_conversations"`
	MaxMemories      int             `json:"max_memories"` // 0 means unbounded
	IssuedAt         time.Time       `json:"issued_at"`
	ExpiresAt        time.Time       `json:"expires_at"`
	Features         map[string]bool `json:"features,omitempty"`
}

// Valid reports whether the license is active and unexpired at now.
func (l License) Valid(now time.Time) bool {
	return l.Status == StatusActive && now.Before(l.ExpiresAt)
}

// DaysRemaining returns whole days until expiry, zero for invalid
// licenses.
func (l License) DaysRemaining(now time.Time) int {
	if !l.Valid(now) {
		return 0
	}
	days := int(l.ExpiresAt.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// FeatureEnabled reports whether the named feature is licensed.
func (l License) FeatureEnabled(feature string) bool {
	return l.Features[feature]
}

func (l License) clone() License {
	out := l
	if l.Features != nil {
		out.Features = make(map[string]bool, len(l.Features))
		for k, v := range l.Features {
			out.Features[k] = v
		}
	}
	return out
}

// keyPrefix derives the key prefix from the license type, e.g. "ENT"
// for enterprise.
func keyPrefix(t Type) string {
	s := strings.ToUpper(string(t))
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
