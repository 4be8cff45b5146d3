// Package shared holds the helpers every feature handler uses: JSON
// rendering, the domain-error to HTTP-status mapping, and pagination parsing.
package shared

import (
	"encoding/json"
	"net/http"
	"strconv"

	dErrors "passgate/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates a domain error into the JSON error envelope with the
// matching HTTP status.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, dErrors.ToHTTPStatus(err), ErrorResponse{
		Error:   string(dErrors.CodeOf(err)),
		Message: dErrors.MessageOf(err),
	})
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ParsePagination reads offset/limit query parameters with sane bounds.
func ParsePagination(r *http.Request) (offset, limit int) {
	offset = parseIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = parseIntParam(r, "limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
