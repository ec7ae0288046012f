package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/beaconlabs/hivemind/internal/security"
	"github.com/beaconlabs/hivemind/internal/session"
)

// createSessionRequest is the JSON body for POST /api/tenants/{tenantID}/sessions.
type createSessionRequest struct {
	UserID  string `json:"user_id"`
	Channel string `json:"channel,omitempty"`
}

// handleCreateSession opens a new session for a user of the tenant.
func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
			return
		}

		tenantID := chi.URLParam(r, "tenantID")
		sess, err := g.sessions.Create(r.Context(), tenantID, req.UserID, req.Channel)
		if err != nil {
			g.writeError(w, err)
			return
		}
		g.audit.Log(security.AuditEvent{
			Type:      security.EventSessionCreate,
			TenantID:  tenantID,
			UserID:    req.UserID,
			SessionID: sess.ID,
			RemoteIP:  r.RemoteAddr,
		})
		writeJSON(w, http.StatusCreated, sess)
	}
}

// handleListSessions lists the tenant's sessions. Query parameters:
// user_id, status, limit, offset.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := session.Filter{
			TenantID: chi.URLParam(r, "tenantID"),
			UserID:   q.Get("user_id"),
			Status:   session.Status(q.Get("status")),
		}
		if raw := q.Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				f.Limit = n
			}
		}
		if raw := q.Get("offset"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				f.Offset = n
			}
		}

		sessions, err := g.sessions.List(r.Context(), f)
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// handleGetSession returns one of the tenant's sessions.
func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.ownedSession(r)
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// updateSessionRequest carries the mutable session fields. An empty status
// or absent metadata leaves the field untouched.
type updateSessionRequest struct {
	Status   string            `json:"status,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// handleUpdateSession patches the status and/or metadata of a session.
func (g *Gateway) handleUpdateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := g.ownedSession(r); err != nil {
			g.writeError(w, err)
			return
		}

		var req updateSessionRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		if req.Status != "" && !session.ValidStatus(session.Status(req.Status)) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status"})
			return
		}

		sess, err := g.sessions.Update(r.Context(),
			chi.URLParam(r, "id"), session.Status(req.Status), req.Metadata)
		if err != nil {
			g.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// handleDeleteSession removes a session.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.ownedSession(r)
		if err != nil {
			g.writeError(w, err)
			return
		}
		if err := g.sessions.Delete(r.Context(), sess.ID); err != nil {
			g.writeError(w, err)
			return
		}
		g.audit.Log(security.AuditEvent{
			Type:      security.EventSessionDelete,
			TenantID:  sess.TenantID,
			UserID:    sess.UserID,
			SessionID: sess.ID,
			RemoteIP:  r.RemoteAddr,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// ownedSession fetches the session in the path and verifies it belongs to
// the tenant in the path. Foreign sessions surface the generic not-found.
func (g *Gateway) ownedSession(r *http.Request) (session.Session, error) {
	sess, err := g.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return session.Session{}, err
	}
	if sess.TenantID != chi.URLParam(r, "tenantID") {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}
