package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps an error kind to a status code. Unclassified errors are
// logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]any{"error": "internal error"})
		return
	}
	body := map[string]any{"error": err.Error()}
	if field, ok := apperrors.FieldOf(err); ok && field != "" {
		body["field"] = field
		body["error"] = messageOf(err)
	}
	writeJSON(w, status, body)
}

func statusOf(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case apperrors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case apperrors.IsAny(err, apperrors.ErrInvalid, apperrors.ErrDanglingReference):
		return http.StatusBadRequest
	case apperrors.IsAny(err, apperrors.ErrNotFound, apperrors.ErrDisabled):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func messageOf(err error) string {
	var fe *apperrors.FieldError
	if apperrors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	parsed, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || parsed == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid " + name})
		return 0, false
	}
	return uint(parsed), true
}

func queryID(w http.ResponseWriter, r *http.Request, name string) (*uint, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid " + name})
		return nil, false
	}
	v := uint(parsed)
	return &v, true
}

func requiredQueryID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, ok := queryID(w, r, name)
	if !ok {
		return 0, false
	}
	if id == nil || *id == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": name + " is required"})
		return 0, false
	}
	return *id, true
}

// asOf reads the view date from as_of or view_date; blank or malformed
// input means today.
func (h *Handler) asOf(r *http.Request) domain.Date {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("view_date"))
	}
	return h.graph.ResolveAsOf(raw)
}

func queryLimit(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
