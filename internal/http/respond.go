package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/carpool/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps application errors onto status codes. Anything that is not
// an *apperr.Error is logged and reported as a bare internal error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		s.logger.Error("request failed", "error", err, "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorPayload{Code: "INTERNAL", Message: "internal error"}})
		return
	}
	status := http.StatusBadRequest
	if ae.Code == apperr.CodeNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorBody{Error: errorPayload{Code: string(ae.Code), Message: ae.Message, Details: ae.Details}})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, apperr.InvalidField("body", err.Error()))
		return false
	}
	return true
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
