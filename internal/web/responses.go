// Package web carries the HTTP plumbing shared by every call-engine
// service: the JSON response envelope, query-parameter helpers, and the
// common middleware stack.
package web

import (
	"encoding/json"
	"net/http"
)

// Envelope is the standard response body: {"status": <int>, ...}.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteStatus writes the envelope with matching HTTP and body status.
func WriteStatus(w http.ResponseWriter, status int) {
	WriteJSON(w, status, Envelope{Status: status})
}

// WriteError writes the envelope with an error message.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, Envelope{Status: status, Message: msg})
}

// Param extracts a required query parameter; a missing value writes a 400
// with the supplied error string and reports ok=false.
func Param(w http.ResponseWriter, r *http.Request, name, errMsg string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		WriteError(w, http.StatusBadRequest, errMsg)
		return "", false
	}
	return v, true
}

// OptionalBool reads a boolean query parameter, defaulting to false when
// absent or malformed.
func OptionalBool(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1", "yes":
		return true
	}
	return false
}
