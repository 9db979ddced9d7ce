package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendhelm/internal/auth"
	"spendhelm/internal/core"
	"spendhelm/internal/log"
)

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a builder with a default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body writes no content.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Message: message, StatusCode: statusCode})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}

func writeNoContent(w http.ResponseWriter) {
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// statusFor maps an error to its HTTP status and the message safe to show.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errMalformedBody), errors.Is(err, errBadQuery):
		return http.StatusBadRequest, err.Error()
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrInactiveAccount):
		return http.StatusUnauthorized, "account is disabled"
	case errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingBearer):
		return http.StatusUnauthorized, unauthorizedMessage(err)
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, auth.ErrMissingBearer):
		return auth.ErrMissingBearer.Error()
	default:
		return "invalid or expired token"
	}
}

// writeError maps err to a status and writes the error body. Server errors
// are logged and never expose their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", log.FieldError, err.Error())
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	ErrorResponse(status, message).Write(w)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}
