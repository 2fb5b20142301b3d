package middleware

import (
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"usersvc/internal/auth"
	"usersvc/internal/errors"
)

// UserContextKey is the echo context key holding the verified *auth.ClerkUser.
const UserContextKey = "clerkUser"

const bearerPrefix = "Bearer "

// Access is the per-route access declaration. A public route skips
// authentication; Roles, when set, require at least one matching role.
type Access struct {
	Public bool
	Roles  []string
}

// Public marks a route as reachable without a token.
func Public() Access {
	return Access{Public: true}
}

// Authenticated requires a valid token and no particular role.
func Authenticated() Access {
	return Access{}
}

// RequireRoles requires a valid token carrying any of roles.
func RequireRoles(roles ...string) Access {
	return Access{Roles: roles}
}

// CurrentUser returns the identity attached by the authentication stage.
func CurrentUser(c echo.Context) (*auth.ClerkUser, bool) {
	u, ok := c.Get(UserContextKey).(*auth.ClerkUser)
	return u, ok && u != nil
}

// Guard returns the authentication and authorization stages for access, in order.
func Guard(v auth.Verifier, access Access, log *zap.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{Authenticate(v, access, log), Authorize(access)}
}

// Authenticate verifies the bearer token and attaches the ClerkUser.
func Authenticate(v auth.Verifier, access Access, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return echojwt.WithConfig(echojwt.Config{
		Skipper:     func(echo.Context) bool { return access.Public },
		ContextKey:  UserContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":" + bearerPrefix,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return v.Verify(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(header[len(bearerPrefix):]) == "" {
				return errors.NewHTTPError(http.StatusUnauthorized, "No token provided", "UNAUTHORIZED")
			}
			log.Debug("authentication failed",
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
			)
			return errors.NewHTTPError(http.StatusUnauthorized, "Invalid token", "UNAUTHORIZED")
		},
	})
}

// Authorize enforces access.Roles. With no roles declared it passes through.
// A request without an identity is rejected even if authentication was skipped.
func Authorize(access Access) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if len(access.Roles) == 0 {
			return next
		}
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return errors.NewHTTPError(http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
			}
			if !user.HasAnyRole(access.Roles...) {
				return errors.NewHTTPError(http.StatusForbidden,
					"User lacks required role(s): "+strings.Join(access.Roles, ", "), "FORBIDDEN")
			}
			return next(c)
		}
	}
}
