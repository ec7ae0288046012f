package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beaconlabs/hivemind/internal/security"
	"github.com/beaconlabs/hivemind/internal/tenant"
)

// handleCreateTenant provisions a new tenant.
func (g *Gateway) handleCreateTenant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t tenant.Tenant
		if err := decodeBody(r, &t); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		created, err := g.tenants.Create(r.Context(), t)
		if err != nil {
			g.writeError(w, err)
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:     security.EventTenantChange,
			TenantID: created.ID,
			Detail:   "created",
		})
		writeJSON(w, http.StatusCreated, created)
	}
}

// handleListTenants returns all tenants.
func (g *Gateway) handleListTenants() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := g.tenants.List(r.Context())
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

// handleGetTenant returns one tenant by ID.
func (g *Gateway) handleGetTenant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := g.tenants.Get(r.Context(), chi.URLParam(r, "tenantID"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// handleUpdateTenant replaces a tenant's mutable fields. The ID in the
// path wins over any ID in the body.
func (g *Gateway) handleUpdateTenant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t tenant.Tenant
		if err := decodeBody(r, &t); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		t.ID = chi.URLParam(r, "tenantID")

		updated, err := g.tenants.Update(r.Context(), t)
		if err != nil {
			g.writeError(w, err)
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:     security.EventTenantChange,
			TenantID: updated.ID,
			Detail:   "updated",
		})
		writeJSON(w, http.StatusOK, updated)
	}
}

// handleDeleteTenant removes a tenant and its users.
func (g *Gateway) handleDeleteTenant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		if err := g.tenants.Delete(r.Context(), tenantID); err != nil {
			g.writeError(w, err)
			return
		}

		g.limiter.Forget(tenantID)
		g.audit.Log(security.AuditEvent{
			Type:     security.EventTenantChange,
			TenantID: tenantID,
			Detail:   "deleted",
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleRegisterUser adds a user to the tenant.
func (g *Gateway) handleRegisterUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u tenant.User
		if err := decodeBody(r, &u); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		u.TenantID = chi.URLParam(r, "tenantID")

		created, err := g.tenants.RegisterUser(r.Context(), u)
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// handleListUsers returns the tenant's users.
func (g *Gateway) handleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := g.tenants.Users(r.Context(), chi.URLParam(r, "tenantID"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// handleRemoveUser deletes a user from the tenant.
func (g *Gateway) handleRemoveUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Scope the removal to the tenant in the path.
		u, err := g.tenants.User(r.Context(), chi.URLParam(r, "userID"))
		if err != nil || u.TenantID != chi.URLParam(r, "tenantID") {
			g.writeError(w, tenant.ErrNotFound)
			return
		}
		if err := g.tenants.RemoveUser(r.Context(), u.ID); err != nil {
			g.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
