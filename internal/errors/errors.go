// Package errors categorizes failures of the valuation engine so callers
// can tell a degraded computation from a failed one.
package errors

import (
	"fmt"
	"net/http"

	"github.com/vault-holdings/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed input rejected at the boundary
	CategoryValidation ErrorCategory = "validation"
	// CategoryUpstreamItem represents a per-item upstream failure that is
	// isolated and degraded, never fatal for the whole computation
	CategoryUpstreamItem ErrorCategory = "upstream_item"
	// CategoryUpstreamFatal represents an upstream failure that makes the
	// whole valuation untrustworthy (event source down)
	CategoryUpstreamFatal ErrorCategory = "upstream_fatal"
	// CategoryCache represents cache read/write failures, always treated
	// as a cache miss
	CategoryCache ErrorCategory = "cache"
	// CategorySystem represents unexpected internal errors
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewEventSourceError creates a whole-request event source failure.
// No partial timeline is trustworthy, so this propagates to the caller.
func NewEventSourceError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstreamFatal,
		StatusCode: http.StatusBadGateway,
		Code:       "EVENT_SOURCE_ERROR",
		Message:    "failed to fetch vault events",
		Cause:      cause,
	}
}

// NewUpstreamItemError creates a per-item upstream failure (a single
// vault's share-price fetch, one price batch, the directory load)
func NewUpstreamItemError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstreamItem,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("upstream provider error: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewMalformedResponseError marks an upstream response that failed schema
// validation, treated the same as a per-item upstream failure
func NewMalformedResponseError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstreamItem,
		StatusCode: http.StatusBadGateway,
		Code:       "MALFORMED_RESPONSE",
		Message:    fmt.Sprintf("malformed response from provider: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewCacheError creates a cache error, always treated as a miss
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}
	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsFatal reports whether an error must abort the valuation instead of
// degrading it
func IsFatal(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Category == CategoryUpstreamFatal || catErr.Category == CategorySystem
}
