// Package core provides shared utilities for the eco-routing services.
package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode defines standard error codes for API responses
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrInvalidRadius    ErrorCode = "INVALID_RADIUS"
	ErrRadiusTooLarge   ErrorCode = "RADIUS_TOO_LARGE"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrMissingCredential  ErrorCode = "MISSING_CREDENTIAL"

	// Data errors
	ErrNoResults     ErrorCode = "NO_RESULTS"
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// APIError represents a detailed error structure for API responses
type APIError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e APIError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new APIError with the given code and message
func NewError(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:    string(code),
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *APIError) WithQuery(query string) *APIError {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *APIError) WithGuidance(guidance string) *APIError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *APIError) WithSuggestions(suggestions ...string) *APIError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// HTTPStatus maps the error code to the status an API handler should return
func (e *APIError) HTTPStatus() int {
	switch ErrorCode(e.Code) {
	case ErrInvalidInput, ErrInvalidLatitude, ErrInvalidLongitude,
		ErrInvalidRadius, ErrRadiusTooLarge, ErrEmptyParameter,
		ErrMissingParameter, ErrInvalidParameter:
		return http.StatusBadRequest
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrServiceTimeout:
		return http.StatusGatewayTimeout
	case ErrServiceUnavailable, ErrNetworkError:
		return http.StatusBadGateway
	case ErrNoResults:
		return http.StatusNotFound
	case ErrMissingCredential:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AsAPIError extracts an *APIError from an error chain, wrapping unknown
// errors as internal errors so handlers always have a structured response.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewError(ErrInternalError, err.Error())
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *APIError {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try reducing the search area or simplifying the query."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The request was invalid. Check your parameters and try again."
	case http.StatusUnauthorized, http.StatusForbidden:
		code = ErrMissingCredential
		guidance = "The provider rejected our credentials. Check the configured API key."
	case http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The server encountered an error. This is likely temporary, please try again later."
	case http.StatusServiceUnavailable:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	default:
		code = ErrServiceUnavailable
		guidance = "Please try again later or modify your request parameters."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}
