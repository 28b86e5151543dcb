package middleware

import (
	"encoding/json"
	"net/http"

	"finrep-server/internal/model"
)

// writeJSON emits an error envelope from middleware, before a handler
// has run. Handlers use their own response helpers.
func writeJSON(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
