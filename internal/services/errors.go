// Package services sits between the HTTP handlers and the analysis pipeline.
// It converts request models into tables and options, runs the analysis and
// converts results back into response models.
package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/source"
)

// Error codes returned in ServiceError.Code
const (
	CodeInvalidJSON     = "INVALID_JSON"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeTagNotFound     = "TAG_NOT_FOUND"
	CodeNotConfigured   = "NOT_CONFIGURED"
	CodeTimeout         = "TIMEOUT"
	CodePipelineFailed  = "PIPELINE_FAILED"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FromError maps err to a ServiceError by the sentinel it wraps. Errors
// that match no sentinel get the fallback code.
func FromError(err error, fallback string) *ServiceError {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	code := fallback
	switch {
	case errors.Is(err, source.ErrTagNotFound):
		code = CodeTagNotFound
	case errors.Is(err, analytics.ErrInvalidArgument):
		code = CodeInvalidArgument
	case errors.Is(err, analytics.ErrInvalidConfig), errors.Is(err, analytics.ErrColumnNotFound):
		code = CodeInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeTimeout
	}
	return NewServiceError(code, err.Error())
}

// HTTPStatus returns the HTTP status for an error code
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidJSON, CodeInvalidRequest, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case CodeTagNotFound:
		return http.StatusNotFound
	case CodeNotConfigured:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
