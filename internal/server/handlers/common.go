// Package handlers wires the HTTP surface: session resolution, request
// validation, and the error-to-status mapping for the failure taxonomy.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/threadforge/threadforge/internal/faults"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeFault maps the failure taxonomy onto HTTP statuses. Everything
// unclassified is a 500; business denials are handled at the call site
// because they carry quota context.
func writeFault(w http.ResponseWriter, err error) {
	switch {
	case faults.IsDenied(err):
		var de *faults.DeniedError
		errors.As(err, &de)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: de.Reason})
	case errors.Is(err, faults.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Detail: err.Error()})
	case errors.Is(err, faults.ErrAuthExpired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "auth_expired", Detail: err.Error()})
	case errors.Is(err, faults.ErrSessionExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "session_expired", Detail: err.Error()})
	case errors.Is(err, faults.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty_content"})
	case errors.Is(err, faults.ErrValidationFailed):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Detail: err.Error()})
	case errors.Is(err, faults.ErrTransient):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream_unavailable", Detail: err.Error()})
	default:
		log.Printf("⚠️ Unclassified handler error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

// decodeAndValidate parses a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return faults.ErrValidationFailed
	}
	if err := validate.Struct(dst); err != nil {
		return faults.ErrValidationFailed
	}
	return nil
}
