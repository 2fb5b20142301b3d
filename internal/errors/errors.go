package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUserNotFound is returned when the target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is returned when a user with the same Clerk ID exists.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUnauthorized is returned when the request carries no valid identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the identity lacks a required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidAmount is returned when a payment amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAvatarNotFound is returned when the user has no stored avatar.
	ErrAvatarNotFound = errors.New("avatar not found")
	// ErrNoPaymentCustomer is returned when the user has no linked payment customer.
	ErrNoPaymentCustomer = errors.New("user has no payment customer")
	// ErrInvalidFile is returned when an uploaded file is rejected.
	ErrInvalidFile = errors.New("invalid file")
)

// UpstreamError marks a failure reported by an external provider.
type UpstreamError struct {
	Provider string
	Op       string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError. A nil err stays nil.
func Upstream(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Provider: provider, Op: op, Err: err}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything unknown becomes a
// generic 500 so internal details stay in the logs.
func MapErrorToHTTP(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return NewHTTPError(http.StatusBadGateway, "upstream provider error", "UPSTREAM_ERROR")
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, "User not found", "USER_NOT_FOUND")
	case errors.Is(err, ErrUserAlreadyExists):
		return NewHTTPError(http.StatusConflict, "User already exists", "USER_ALREADY_EXISTS")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, "Forbidden", "FORBIDDEN")
	case errors.Is(err, ErrInvalidAmount):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_AMOUNT")
	case errors.Is(err, ErrAvatarNotFound):
		return NewHTTPError(http.StatusNotFound, "Avatar not found", "AVATAR_NOT_FOUND")
	case errors.Is(err, ErrInvalidFile):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_FILE")
	case errors.Is(err, ErrNoPaymentCustomer):
		return NewHTTPError(http.StatusUnprocessableEntity, err.Error(), "NO_PAYMENT_CUSTOMER")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
