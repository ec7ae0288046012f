package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/beaconlabs/hivemind/internal/session"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Tenants int    `json:"tenants"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.tenants != nil {
			all, err := g.tenants.List(r.Context())
			if err == nil {
				resp.Tenants = len(all)
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Tenants       int     `json:"tenants"`
	Licenses      int     `json:"licenses"`
	Skills        int     `json:"skills"`
	Sessions      int     `json:"sessions"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		}

		ctx := r.Context()
		resp.Tenants = countTenants(ctx, g)
		if g.licenses != nil {
			if lics, err := g.licenses.List(ctx); err == nil {
				resp.Licenses = len(lics)
			}
		}
		if g.skills != nil {
			if n, err := g.skills.Count(ctx, ""); err == nil {
				resp.Skills = n
			}
		}
		if g.sessions != nil {
			if n, err := g.sessions.Count(ctx, session.Filter{}); err == nil {
				resp.Sessions = n
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func countTenants(ctx context.Context, g *Gateway) int {
	if g.tenants == nil {
		return 0
	}
	all, err := g.tenants.List(ctx)
	if err != nil {
		return 0
	}
	return len(all)
}
