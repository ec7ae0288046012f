package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/beaconlabs/hivemind/internal/memory"
	"github.com/beaconlabs/hivemind/internal/security"
)

// addMemoryRequest is the JSON body for POST /api/tenants/{tenantID}/memories.
type addMemoryRequest struct {
	UserID     string   `json:"user_id"`
	Content    string   `json:"content"`
	Type       string   `json:"memory_type,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Importance int      `json:"importance"`
}

// handleAddMemory stores a new record for the tenant.
func (g *Gateway) handleAddMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		if err := g.limiter.Allow(tenantID, security.KindWrite); err != nil {
			g.writeError(w, err)
			return
		}

		var req addMemoryRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		rec, err := g.memories.Add(r.Context(), memory.AddParams{
			TenantID:   tenantID,
			UserID:     req.UserID,
			Content:    req.Content,
			Type:       memory.MemoryType(req.Type),
			Tags:       req.Tags,
			Importance: req.Importance,
		})
		if err != nil {
			g.writeError(w, err)
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:     security.EventMemoryWrite,
			TenantID: tenantID,
			UserID:   req.UserID,
			Detail:   rec.ID,
		})
		writeJSON(w, http.StatusCreated, rec)
	}
}

// handleSearchMemories runs a ranked search. Query parameters:
// q (required), limit, memory_type, tags (comma-separated).
func (g *Gateway) handleSearchMemories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		if err := g.limiter.Allow(tenantID, security.KindSearch); err != nil {
			g.writeError(w, err)
			return
		}

		q := r.URL.Query()
		limit := memory.DefaultSearchLimit
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid limit"})
				return
			}
			limit = n
		}

		var tags []string
		if raw := q.Get("tags"); raw != "" {
			tags = strings.Split(raw, ",")
		}

		recs, err := g.memories.Search(r.Context(), memory.SearchParams{
			TenantID: tenantID,
			Query:    q.Get("q"),
			Type:     memory.MemoryType(q.Get("memory_type")),
			Tags:     tags,
			Limit:    limit,
		})
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// handleListMemories lists a user's records, newest first. The user_id
// query parameter is required.
func (g *Gateway) handleListMemories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		recs, err := g.memories.GetByUser(r.Context(), tenantID, r.URL.Query().Get("user_id"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// handleCountMemories returns the tenant's record count, optionally
// narrowed to one user.
func (g *Gateway) handleCountMemories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		n, err := g.memories.Count(r.Context(), tenantID, r.URL.Query().Get("user_id"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": n})
	}
}

// handleGetMemory returns one record scoped to the tenant.
func (g *Gateway) handleGetMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := g.memories.Get(r.Context(), chi.URLParam(r, "tenantID"), chi.URLParam(r, "id"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// handlePinMemory marks a record exempt from eviction.
func (g *Gateway) handlePinMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := g.memories.Pin(r.Context(), chi.URLParam(r, "tenantID"), chi.URLParam(r, "id"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// handleUnpinMemory clears the pinned flag.
func (g *Gateway) handleUnpinMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := g.memories.Unpin(r.Context(), chi.URLParam(r, "tenantID"), chi.URLParam(r, "id"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// handleDeleteMemory removes a record.
func (g *Gateway) handleDeleteMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		id := chi.URLParam(r, "id")

		if err := g.memories.Delete(r.Context(), tenantID, id); err != nil {
			g.writeError(w, err)
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:     security.EventMemoryDelete,
			TenantID: tenantID,
			Detail:   id,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleClearUserMemories bulk-removes every record one user owns.
func (g *Gateway) handleClearUserMemories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		userID := chi.URLParam(r, "userID")

		if err := g.limiter.Allow(tenantID, security.KindWrite); err != nil {
			g.writeError(w, err)
			return
		}

		deleted, err := g.memories.DeleteByUser(r.Context(), tenantID, userID)
		if err != nil {
			g.writeError(w, err)
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:     security.EventMemoryDelete,
			TenantID: tenantID,
			UserID:   userID,
			Detail:   strconv.Itoa(deleted) + " records",
		})
		writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
	}
}

// sweepResponse reports the outcome of a capacity enforcement pass.
type sweepResponse struct {
	Evicted      int  `json:"evicted"`
	OverCapacity bool `json:"over_capacity"`
}

// handleSweepMemories applies the lifecycle policy to the tenant now.
func (g *Gateway) handleSweepMemories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		evicted, over, err := g.memories.EnforceCapacity(r.Context(), chi.URLParam(r, "tenantID"))
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sweepResponse{Evicted: evicted, OverCapacity: over})
	}
}
