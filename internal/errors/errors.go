package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gold-portfolio/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed or out-of-range input (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents references to absent entries or instances
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryProvider represents transient price source errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryAuthorization represents rejected price source credentials
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryRateLimit represents throttling, ours or the source's
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryPersistence represents ledger file and database errors
	CategoryPersistence ErrorCategory = "persistence"
	// CategorySystem represents everything else (5xx)
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

// ToServiceError converts to the wire error shape
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Command errors

// NewValidationError creates a validation error for one input field
func NewValidationError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", field, reason),
		Details: map[string]interface{}{
			"parameter": field,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewPriceUnavailableError is returned when no snapshot or historical price exists
func NewPriceUnavailableError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "PRICE_UNAVAILABLE",
		Message:    reason,
	}
}

// NewRateLimitError creates an error for requests rejected by our own limiter
func NewRateLimitError(limit float64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"limit": limit,
		},
	}
}

// System errors

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

// NewPersistenceError creates a ledger or database error
func NewPersistenceError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPersistence,
		StatusCode: http.StatusInternalServerError,
		Code:       "PERSISTENCE_ERROR",
		Message:    fmt.Sprintf("persistence error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewServiceUnavailableError creates a service unavailable error
func NewServiceUnavailableError(service string) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    fmt.Sprintf("service unavailable: %s", service),
		Details: map[string]interface{}{
			"service": service,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var srcErr *SourceError
	if stderrors.As(err, &srcErr) {
		return categorizeSourceError(srcErr)
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// categorizeSourceError maps a price source failure onto the HTTP taxonomy
func categorizeSourceError(err *SourceError) *CategorizedError {
	catErr := &CategorizedError{
		Code:    "PROVIDER_" + err.Kind.upper(),
		Message: err.Error(),
		Cause:   err,
		Details: map[string]interface{}{
			"provider": err.Provider,
			"kind":     string(err.Kind),
		},
	}

	switch err.Kind {
	case KindAuth, KindForbidden:
		catErr.Category = CategoryAuthorization
		catErr.StatusCode = http.StatusBadGateway
	case KindRateLimit:
		catErr.Category = CategoryRateLimit
		catErr.StatusCode = http.StatusTooManyRequests
	case KindTimeout:
		catErr.Category = CategoryProvider
		catErr.StatusCode = http.StatusGatewayTimeout
	default:
		catErr.Category = CategoryProvider
		catErr.StatusCode = http.StatusBadGateway
	}

	if err.StatusCode != 0 {
		catErr.Details["statusCode"] = err.StatusCode
	}
	return catErr
}

// IsRetryable determines if an error is worth another attempt on the next tick
func IsRetryable(err error) bool {
	var srcErr *SourceError
	if stderrors.As(err, &srcErr) {
		return srcErr.Kind.Transient()
	}

	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryProvider, CategoryPersistence, CategoryRateLimit:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsCategory reports whether err categorizes as the given category
func IsCategory(err error, category ErrorCategory) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == category
}
