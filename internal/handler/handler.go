package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"usersvc/internal/auth"
	"usersvc/internal/errors"
	"usersvc/internal/middleware"
)

// respondError converts a service error into an echo error carrying an
// ErrorResponse. The original error is kept for logging.
func respondError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func badRequest(message, code string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: message, Code: code})
}

// bindAndValidate decodes the request body into req and runs struct validation.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}
	return nil
}

// caller returns the authenticated identity or an Unauthorized error.
func caller(c echo.Context) (*auth.ClerkUser, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, respondError(errors.ErrUnauthorized)
	}
	return u, nil
}
