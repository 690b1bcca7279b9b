package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/api/middleware"
	"github.com/felixgeelhaar/codequest/internal/auth"
	"github.com/felixgeelhaar/codequest/internal/domain"
)

// APIError represents a structured API error
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// NewAPIError creates a new API error
func NewAPIError(code string, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// WithDetails adds details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ErrorResponse is the JSON structure for error responses
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// WriteError aborts the request with an error envelope
func WriteError(c *gin.Context, status int, apiErr *APIError) {
	fields := []zap.Field{
		zap.String("code", apiErr.Code),
		zap.String("message", apiErr.Message),
		zap.Int("status", status),
	}
	if apiErr.cause != nil {
		fields = append(fields, zap.Error(apiErr.cause))
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error("api error", fields...)
	} else {
		middleware.LoggerFrom(c).Debug("api error", fields...)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: apiErr})
}

func badRequest(c *gin.Context, message string) {
	WriteError(c, http.StatusBadRequest, NewAPIError("BAD_REQUEST", message))
}

func notFound(c *gin.Context, resource string) {
	WriteError(c, http.StatusNotFound, NewAPIError("NOT_FOUND", resource+" not found"))
}

func unavailable(c *gin.Context, message string, cause error) {
	WriteError(c, http.StatusServiceUnavailable, NewAPIError("UNAVAILABLE", message).WithCause(cause))
}

// writeDomainError maps a domain error to its status code
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrSubmissionNotFound),
		errors.Is(err, domain.ErrNotFound):
		WriteError(c, http.StatusNotFound, NewAPIError("NOT_FOUND", err.Error()))
	case errors.Is(err, domain.ErrTaskExists):
		WriteError(c, http.StatusConflict, NewAPIError("CONFLICT", err.Error()))
	case errors.Is(err, domain.ErrInvalidTask),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnsupportedLanguage):
		WriteError(c, http.StatusBadRequest, NewAPIError("BAD_REQUEST", err.Error()))
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidPassphrase):
		WriteError(c, http.StatusUnauthorized, NewAPIError("UNAUTHORIZED", err.Error()))
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, auth.ErrAdminDisabled):
		WriteError(c, http.StatusForbidden, NewAPIError("FORBIDDEN", err.Error()))
	default:
		WriteError(c, http.StatusInternalServerError,
			NewAPIError("INTERNAL_ERROR", "internal server error").WithCause(err))
	}
}
