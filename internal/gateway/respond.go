package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/beaconlabs/hivemind/internal/license"
	"github.com/beaconlabs/hivemind/internal/memory"
	"github.com/beaconlabs/hivemind/internal/security"
	"github.com/beaconlabs/hivemind/internal/session"
	"github.com/beaconlabs/hivemind/internal/skill"
	"github.com/beaconlabs/hivemind/internal/tenant"
)

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeError maps a domain error to an HTTP status. Unknown errors are
// logged and surfaced as an opaque 500.
func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	switch {
	case isBadRequest(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case isNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, tenant.ErrAlreadyExists), errors.Is(err, skill.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, tenant.ErrInactive),
		errors.Is(err, tenant.ErrUserLimit),
		errors.Is(err, skill.ErrNotPublic):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, memory.ErrQuotaExceeded), errors.Is(err, security.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
	default:
		g.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func isBadRequest(err error) bool {
	var (
		tenantField  *tenant.FieldError
		sessionField *session.FieldError
	)
	return memory.IsValidation(err) ||
		errors.As(err, &tenantField) ||
		errors.As(err, &sessionField) ||
		errors.Is(err, license.ErrInvalidType)
}

func isNotFound(err error) bool {
	return errors.Is(err, memory.ErrNotFound) ||
		errors.Is(err, memory.ErrTenantNotFound) ||
		errors.Is(err, tenant.ErrNotFound) ||
		errors.Is(err, license.ErrNotFound) ||
		errors.Is(err, skill.ErrNotFound) ||
		errors.Is(err, session.ErrNotFound)
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
