package middleware

import (
	"encoding/json"
	"net/http"
)

// errorEnvelope is the response envelope for failures produced inside the
// middleware chain, mirroring the shape the handler layer emits.
type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeEnvelopeError writes a JSON error envelope. Middleware cannot import
// the api package (the dependency runs the other way), so it carries its own
// minimal writer.
func writeEnvelopeError(w http.ResponseWriter, status int, kind, message, requestID string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(errorEnvelope{
		Success: false,
		Error: errorBody{
			Kind:      kind,
			Message:   message,
			RequestID: requestID,
		},
	})
}


