package server

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lepinkainen/folio/internal/errors"
)

// SuccessResponse is the envelope of every successful JSON response.
type SuccessResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorResponse is the envelope of every failed request.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Error   ErrorBody      `json:"error"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail is a per-field validation message.
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func buildMeta(r *http.Request, extra map[string]any) map[string]any {
	requestID := RequestIDFrom(r.Context())
	if requestID == "" && len(extra) == 0 {
		return nil
	}
	meta := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		meta[k] = v
	}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	return meta
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any, extra map[string]any) {
	writeJSON(w, status, SuccessResponse{
		Success: true,
		Data:    data,
		Meta:    buildMeta(r, extra),
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details []ErrorDetail) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: buildMeta(r, nil),
	})
}

// respondErr maps a typed error to its status code and writes it.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()), "error", err)
		message = "An internal error occurred"
	}

	var details []ErrorDetail
	var verr *errors.ValidationError
	if stdErrors.As(err, &verr) && verr.Field != "" {
		details = []ErrorDetail{{Field: verr.Field, Message: verr.Message}}
	}
	if rl := retryAfter(err); rl != "" {
		w.Header().Set("Retry-After", rl)
	}

	respondError(w, r, status, code, message, details)
}

// errorStatus checks NotFound and RateLimit before Fetch because source
// errors wrap them.
func errorStatus(err error) (int, string) {
	switch {
	case errors.IsNotFoundError(err):
		return http.StatusNotFound, "not_found"
	case errors.IsValidationError(err):
		return http.StatusBadRequest, "validation_error"
	case errors.IsAuthError(err):
		return http.StatusUnauthorized, "unauthorized"
	case errors.IsForbiddenError(err):
		return http.StatusForbidden, "forbidden"
	case errors.IsConflictError(err):
		return http.StatusConflict, "conflict"
	case errors.IsRateLimitError(err):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.IsFetchError(err):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func retryAfter(err error) string {
	var rl *errors.RateLimitError
	if !stdErrors.As(err, &rl) || rl.RetryAfter <= 0 {
		return ""
	}
	return strconv.Itoa(int(rl.RetryAfter.Seconds() + 0.5))
}
