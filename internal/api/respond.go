package api

import (
	"context"
	"net/http"

	// Drop-in replacement for encoding/json on the response path.
	json "github.com/goccy/go-json"

	"github.com/kaaltube/backend/internal/logging"
)

type successEnvelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
}

type errorEnvelope struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
	StatusCode int      `json:"statusCode"`
}

// WriteData emits the success envelope with the provided payload.
func WriteData(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	writeJSON(ctx, w, status, successEnvelope{
		Success:    true,
		StatusCode: status,
		Data:       data,
		Message:    message,
	})
}

// WriteError maps err onto the error envelope. Typed *Error values keep their
// status and message; anything else becomes a 500 with the underlying error
// logged but not exposed to the caller.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.FromContext(ctx)

	apiErr, ok := AsError(err)
	if !ok {
		logger.Error("unhandled error", "error", err)
		apiErr = Internal("Internal Server Error")
	}

	details := apiErr.Details
	if details == nil {
		details = []string{}
	}

	envelope := errorEnvelope{
		Success:    false,
		Message:    apiErr.Message,
		Errors:     details,
		StatusCode: apiErr.Status,
	}

	switch {
	case apiErr.Status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", apiErr.Status, "message", apiErr.Message)
	default:
		logger.Warn("request returned client error", "status", apiErr.Status, "message", apiErr.Message)
	}

	writeJSON(ctx, w, apiErr.Status, envelope)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

// Decode parses a JSON request body into dst, translating parse failures into
// a BadRequest error.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return BadRequest("invalid request body")
	}
	return nil
}
