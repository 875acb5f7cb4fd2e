package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "dashchat/internal/errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes err as the standard JSON error envelope, choosing the status
// from its error code.
func WriteError(w http.ResponseWriter, err error, requestID string) {
	_ = WriteJSON(w, apperrors.HTTPStatusCode(err), apperrors.ToHTTPResponse(err, requestID))
}
