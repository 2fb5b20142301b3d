package middleware

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"usersvc/internal/errors"
)

// ErrorHandler renders every error as an errors.ErrorResponse. 5xx responses
// are logged with the underlying error; clients only see the mapped message.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := toHTTPError(err)
		if resp.StatusCode >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", resp.StatusCode),
				zap.Error(err),
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(resp.StatusCode)
		} else {
			writeErr = c.JSON(resp.StatusCode, resp.ToErrorResponse())
		}
		if writeErr != nil {
			log.Warn("failed to write error response", zap.Error(writeErr))
		}
	}
}

func toHTTPError(err error) *errors.HTTPError {
	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		switch m := he.Message.(type) {
		case errors.ErrorResponse:
			return errors.NewHTTPError(he.Code, m.Error, m.Code)
		case string:
			return errors.NewHTTPError(he.Code, m, statusCode(he.Code))
		default:
			return errors.NewHTTPError(he.Code, fmt.Sprint(m), statusCode(he.Code))
		}
	}
	return errors.MapErrorToHTTP(err)
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
