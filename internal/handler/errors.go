package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// writeOK is a success envelope without data.
func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, nil)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(envelope{Error: &errorDetail{Code: code, Message: message}})
}

// requestError answers a request rejected before reaching the service layer
// (e.g. missing or malformed body).
func requestError(w http.ResponseWriter, message string) {
	writeErrorBody(w, http.StatusBadRequest, "bad_request", message)
}

// sentinelStatus maps each domain sentinel to its HTTP status and code.
var sentinelStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrNotAuthenticated, http.StatusUnauthorized, "not_authenticated"},
	{domain.ErrAuthentication, http.StatusUnauthorized, "authentication_failed"},
	{domain.ErrAuthorization, http.StatusForbidden, "not_authorized"},
}

// writeError maps a service error onto the failure envelope. Errors that
// match no sentinel are logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range sentinelStatus {
		if errors.Is(err, m.err) {
			writeErrorBody(w, m.status, m.code, unwrapMessage(err, m.err))
			return
		}
	}
	s.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeErrorBody(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.BookingService.CreateRequest: validation error: participants must be at least 1"
// → "participants must be at least 1". With nothing after the sentinel the
// sentinel text itself is returned, so operation prefixes never reach clients.
func unwrapMessage(err, sentinel error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 && len(msg) > i+len(marker) {
		return msg[i+len(marker):]
	}
	return sentinel.Error()
}

// decodeJSON reads a JSON body into dst. It answers the request itself and
// returns false when the body is missing or malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeErrorBody(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		case errors.Is(err, io.EOF):
			requestError(w, "request body is required")
		default:
			requestError(w, fmt.Sprintf("malformed request body: %v", err))
		}
		return false
	}
	return true
}

// pathUUID parses the named chi URL parameter. It answers 400 and returns
// false when the value is not a UUID.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		requestError(w, fmt.Sprintf("invalid %s: must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}
