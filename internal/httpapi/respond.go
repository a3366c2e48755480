// Package httpapi exposes the gateway-facing job API and the plan
// executor's internal API over HTTP, both built on the same
// http.ServeMux method-pattern routing and writeJSON/writeError helpers
// the original estimator's api.Server used.
package httpapi

import (
	"encoding/json"
	"net/http"

	"cloudcost/internal/errors"
)

func writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeErrorCode(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}, status)
}

// writeAPIError renders err as a JSON error body, using its errors.Type
// HTTP status and name when err carries one, and otherwise falling back to
// a generic 500 internal_error so a handler never has to know every error
// kind a downstream package might return.
func writeAPIError(w http.ResponseWriter, err error) {
	if typed, ok := err.(*errors.Error); ok {
		writeErrorCode(w, string(typed.Type), typed.Error(), typed.HTTPStatus())
		return
	}
	writeErrorCode(w, "internal_error", err.Error(), http.StatusInternalServerError)
}

// writeImmutabilityViolation answers a mutation attempt against a
// read-only resource with 405, per spec: update/patch/delete on a result
// always fail this way, never with a generic error body.
func writeImmutabilityViolation(w http.ResponseWriter, resource string) {
	writeErrorCode(w, string(errors.TypeImmutabilityViolation),
		resource+" is immutable and cannot be modified or deleted", http.StatusMethodNotAllowed)
}
