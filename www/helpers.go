package www

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trackcore/geo"
	"trackcore/lifecycle"
	"trackcore/store"
	"trackcore/tracking"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// domainError maps sentinel errors onto HTTP status codes.
func (h *Handlers) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, tracking.ErrUnknownOrder):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		h.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, lifecycle.ErrUnauthorized):
		h.jsonError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, tracking.ErrSessionTerminated):
		h.jsonError(w, err.Error(), http.StatusGone)
	case errors.Is(err, geo.ErrInvalidCoordinate):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func orderIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
}

// actorFromRequest reads the caller identity established by the
// upstream auth proxy.
func actorFromRequest(r *http.Request) lifecycle.Actor {
	return lifecycle.Actor{
		Role: r.Header.Get("X-Actor-Role"),
		ID:   r.Header.Get("X-Actor-Id"),
	}
}
