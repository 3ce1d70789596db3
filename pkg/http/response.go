package http

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes body as the response with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteSuccess writes {"success": true} merged with fields.
func WriteSuccess(w http.ResponseWriter, statusCode int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	WriteJSON(w, statusCode, body)
}

// WriteMessage acknowledges an operation that has no payload.
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	WriteSuccess(w, statusCode, map[string]any{"message": message})
}
