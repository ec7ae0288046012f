package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/beaconlabs/hivemind/internal/skill"
)

// registerSkillRequest is the JSON body for POST /api/tenants/{tenantID}/skills.
type registerSkillRequest struct {
	Name                string         `json:"name"`
	Namespace           string         `json:"namespace,omitempty"`
	Description         string         `json:"description,omitempty"`
	Version             string         `json:"version,omitempty"`
	Manifest            string         `json:"manifest,omitempty"`
	Public              bool           `json:"public"`
	RequiredPermissions []string       `json:"required_permissions,omitempty"`
	Author              string         `json:"author,omitempty"`
	Tags                []string       `json:"tags,omitempty"`
	Config              map[string]any `json:"config,omitempty"`
}

// handleRegisterSkill registers a skill under the tenant.
func (g *Gateway) handleRegisterSkill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerSkillRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
			return
		}

		s, err := g.skills.Register(r.Context(), skill.RegisterParams{
			TenantID:            chi.URLParam(r, "tenantID"),
			Name:                req.Name,
			Namespace:           req.Namespace,
			Description:         req.Description,
			Version:             req.Version,
			Manifest:            req.Manifest,
			Public:              req.Public,
			RequiredPermissions: req.RequiredPermissions,
			Author:              req.Author,
			Tags:                req.Tags,
			Config:              req.Config,
		})
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

// handleListSkills lists the tenant's skills. Query parameters: namespace,
// active, include_public, tags (comma-separated), limit.
func (g *Gateway) handleListSkills() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := skill.ListFilter{
			Namespace:     q.Get("namespace"),
			IncludePublic: q.Get("include_public") == "true",
		}
		if raw := q.Get("active"); raw != "" {
			active := raw == "true"
			f.Active = &active
		}
		if raw := q.Get("tags"); raw != "" {
			f.Tags = strings.Split(raw, ",")
		}
		if raw := q.Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				f.Limit = n
			}
		}

		skills, err := g.skills.List(r.Context(), chi.URLParam(r, "tenantID"), f)
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, skills)
	}
}

// handleGetSkill returns a skill the tenant can see: its own, or a public
// one from another tenant.
func (g *Gateway) handleGetSkill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := g.skills.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		if s.TenantID != chi.URLParam(r, "tenantID") && !s.Public {
			g.writeError(w, skill.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// updateSkillRequest carries the mutable skill fields. Absent fields keep
// their current values.
type updateSkillRequest struct {
	Manifest    *string        `json:"manifest,omitempty"`
	Description *string        `json:"description,omitempty"`
	Version     *string        `json:"version,omitempty"`
	Active      *bool          `json:"active,omitempty"`
	Public      *bool          `json:"public,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// handleUpdateSkill updates a skill owned by the tenant.
func (g *Gateway) handleUpdateSkill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.requireOwnedSkill(r, id); err != nil {
			g.writeError(w, err)
			return
		}

		var req updateSkillRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		s, err := g.skills.Update(r.Context(), id, skill.UpdateParams{
			Manifest:    req.Manifest,
			Description: req.Description,
			Version:     req.Version,
			Active:      req.Active,
			Public:      req.Public,
			Tags:        req.Tags,
			Config:      req.Config,
		})
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// handleDeleteSkill removes a skill owned by the tenant.
func (g *Gateway) handleDeleteSkill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.requireOwnedSkill(r, id); err != nil {
			g.writeError(w, err)
			return
		}
		if err := g.skills.Delete(r.Context(), id); err != nil {
			g.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// requireOwnedSkill verifies the skill belongs to the tenant in the path.
// Foreign skills surface the generic not-found.
func (g *Gateway) requireOwnedSkill(r *http.Request, id string) error {
	s, err := g.skills.Get(r.Context(), id)
	if err != nil {
		return err
	}
	if s.TenantID != chi.URLParam(r, "tenantID") {
		return skill.ErrNotFound
	}
	return nil
}

// handleBrowseMarket lists skills visible to the tenant. Query parameters:
// q (free text), category (tag), limit.
func (g *Gateway) handleBrowseMarket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 0
		if raw := q.Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}

		listings, err := g.market.Browse(r.Context(),
			chi.URLParam(r, "tenantID"), q.Get("category"), q.Get("q"), limit)
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listings)
	}
}

// handleInstallSkill copies a public skill into the tenant.
func (g *Gateway) handleInstallSkill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Namespace string `json:"namespace,omitempty"`
		}
		// The body is optional; an empty namespace uses the default.
		_ = decodeBody(r, &req)

		s, err := g.market.Install(r.Context(),
			chi.URLParam(r, "id"), chi.URLParam(r, "tenantID"), req.Namespace)
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

// handleUninstallSkill removes an installed skill from the tenant.
func (g *Gateway) handleUninstallSkill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := g.market.Uninstall(r.Context(),
			chi.URLParam(r, "tenantID"), chi.URLParam(r, "id"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
