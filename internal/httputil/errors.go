// Package httputil writes the gateway's uniform JSON error envelope. Messages
// here stay generic: which signature matched, which marker was missing, or
// what the provider said is logged server-side only.
package httputil

import (
	"encoding/json"
	"net/http"
)

// APIError is the error envelope returned on every failure path.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Error: APIErrorBody{
			Message:   message,
			Type:      errType,
			Code:      code,
			RequestID: requestID,
		},
	})
}

// WriteAuthError returns the uniform 401. The message never varies by cause so
// token validity cannot be probed through the error text.
func WriteAuthError(w http.ResponseWriter, requestID string) {
	WriteError(w, requestID, http.StatusUnauthorized, "authentication_error", "invalid_session", "Invalid session")
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

// WriteBlockedError returns 422 for sanitizer blocks. The matched signature
// label stays in the server log.
func WriteBlockedError(w http.ResponseWriter, requestID string) {
	WriteError(w, requestID, http.StatusUnprocessableEntity, "content_blocked_error", "blocked", "Message not allowed")
}

// WriteMissionError returns 403 for mission integrity failures.
func WriteMissionError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusForbidden, "mission_error", "mission_rejected", message)
}

func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusTooManyRequests, "rate_limit_error", "rate_limit_exceeded", message)
}

func WriteUpstreamError(w http.ResponseWriter, requestID string) {
	WriteError(w, requestID, http.StatusBadGateway, "upstream_error", "upstream_unavailable", "Model provider unavailable")
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, "server_error", "internal_error", message)
}
