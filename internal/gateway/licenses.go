package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beaconlabs/hivemind/internal/license"
	"github.com/beaconlabs/hivemind/internal/security"
)

// issueLicenseRequest is the JSON body for POST /api/licenses.
type issueLicenseRequest struct {
	TenantID         string          `json:"tenant_id"`
	Type             string          `json:"type"`
	MaxUsers         int             `json:"max_users"`
	MaxConversations int             `json:"max_conversations"`
	MaxMemories      int             `json:"max_memories"`
	Days             int             `json:"days"`
	Features         map[string]bool `json:"features,omitempty"`
}

// issueLicenseResponse carries the license and its one-time activation key.
type issueLicenseResponse struct {
	License license.License `json:"license"`
	Key     string          `json:"key"`
}

// handleIssueLicense issues a license for a tenant. The activation key is
// returned once and never stored in clear.
func (g *Gateway) handleIssueLicense() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req issueLicenseRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		lic, key, err := g.licenses.Issue(r.Context(), license.IssueParams{
			TenantID:         req.TenantID,
			Type:             license.Type(req.Type),
			MaxUsers:         req.MaxUsers,
			MaxConversations: req.MaxConversations,
			MaxMemories:      req.MaxMemories,
			Days:             req.Days,
			Features:         req.Features,
		})
		if err != nil {
			g.writeError(w, err)
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:     security.EventLicenseChange,
			TenantID: req.TenantID,
			Detail:   "issued " + lic.ID,
		})
		writeJSON(w, http.StatusCreated, issueLicenseResponse{License: lic, Key: key})
	}
}

// handleActivateLicense resolves an activation key.
func (g *Gateway) handleActivateLicense() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Key string `json:"key"`
		}
		if err := decodeBody(r, &req); err != nil || req.Key == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "key is required"})
			return
		}

		lic, err := g.licenses.Activate(r.Context(), req.Key)
		if err != nil {
			g.writeError(w, err)
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:     security.EventLicenseChange,
			TenantID: lic.TenantID,
			Detail:   "activated " + lic.ID,
		})
		writeJSON(w, http.StatusOK, lic)
	}
}

// handleListLicenses returns all licenses.
func (g *Gateway) handleListLicenses() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := g.licenses.List(r.Context())
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

// handleGetLicense returns one license by ID.
func (g *Gateway) handleGetLicense() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lic, err := g.licenses.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lic)
	}
}

// handleRevokeLicense revokes a license. Revocation is terminal.
func (g *Gateway) handleRevokeLicense() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.licenses.Revoke(r.Context(), id); err != nil {
			g.writeError(w, err)
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:   security.EventLicenseChange,
			Detail: "revoked " + id,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}
