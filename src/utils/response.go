package utils

import (
	"encoding/json"
	"net/http"

	"github.com/ajconsultancy/tradedesk/src/logger"
)

// SendJSON writes v as a JSON response with the given status code.
func SendJSON(w http.ResponseWriter, v interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

// SendJSONError writes the error envelope used by every endpoint:
// {"message": "..."} plus the HTTP status. Internal detail stays in the logs.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	SendJSON(w, map[string]string{"message": message}, statusCode)
}
