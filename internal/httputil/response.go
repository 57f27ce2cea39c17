package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"lumina/internal/domain"
)

// RespondJSON writes a JSON response with the given status code. Marshals
// first so an encoding failure cannot produce a half-written body.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// errorBody is the wire shape for all error responses.
type errorBody struct {
	Error string `json:"error"`
}

// RespondError writes a {"error": string} response with the given status.
func RespondError(w http.ResponseWriter, status int, detail string) {
	payload, err := json.Marshal(errorBody{Error: detail})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// RespondDomainError maps a domain error to its HTTP status. Errors that do
// not implement domain.HTTPError become opaque 500s; end users never see raw
// internals.
func RespondDomainError(w http.ResponseWriter, err error) {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}
	RespondError(w, http.StatusInternalServerError, "internal server error")
}
