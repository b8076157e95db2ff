// Package httputil provides the JSON response and request helpers shared by
// the HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes err as {"error": "..."} with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteInternalError writes a 500 without exposing the cause
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// WriteNoContent writes a successful response with no content (204)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// StatusMap resolves domain errors to status codes with errors.Is.
type StatusMap map[error]int

// Status returns the code for err, 500 when nothing matches.
func (m StatusMap) Status(err error) int {
	for target, status := range m {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Write writes err with its mapped status code. Unmapped errors become a
// generic 500 so storage and transport details stay server side.
func (m StatusMap) Write(w http.ResponseWriter, err error) {
	status := m.Status(err)
	if status == http.StatusInternalServerError {
		WriteInternalError(w)
		return
	}
	WriteError(w, status, err)
}

// MemberID parses the {memberID} route parameter, writing a 400 when it is
// not a UUID.
func MemberID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		WriteBadRequest(w, "invalid member ID")
		return uuid.Nil, false
	}
	return id, true
}
