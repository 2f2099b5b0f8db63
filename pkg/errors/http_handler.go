package errors

import (
	"encoding/json"
	"net/http"
)

// WriteError renders err as an ErrorResponse. Errors that are not AppErrors are
// reported as internal errors without leaking their text.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())

	response := ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	return json.NewEncoder(w).Encode(response)
}
