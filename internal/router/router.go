package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"usersvc/internal/auth"
	"usersvc/internal/config"
	"usersvc/internal/handler"
	"usersvc/internal/middleware"
)

// Deps are the shared components the HTTP layer is built from.
type Deps struct {
	Verifier      auth.Verifier
	ResponseCache middleware.ResponseStore
	RateLimiter   echomw.RateLimiterStore
	Log           *zap.Logger
}

// Handlers groups the endpoint handlers.
type Handlers struct {
	App      *handler.AppHandler
	Users    *handler.UserHandler
	Payments *handler.PaymentHandler
}

// route is one entry of the route table. Every route states its access rule.
type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
	access  middleware.Access
	cached  bool
}

func routes(h Handlers) []route {
	admin := middleware.RequireRoles("admin")
	authed := middleware.Authenticated()
	public := middleware.Public()

	return []route{
		{method: http.MethodGet, path: "/", handler: h.App.Root, access: public},
		{method: http.MethodGet, path: "/health", handler: h.App.Health, access: public},
		{method: http.MethodGet, path: "/swagger/*", handler: echoSwagger.WrapHandler, access: public},

		{method: http.MethodPost, path: "/users", handler: h.Users.Create, access: admin},
		{method: http.MethodGet, path: "/users", handler: h.Users.FindAll, access: admin, cached: true},
		{method: http.MethodGet, path: "/users/profile", handler: h.Users.GetProfile, access: authed},
		{method: http.MethodPatch, path: "/users/profile", handler: h.Users.UpdateProfile, access: authed},
		{method: http.MethodPost, path: "/users/profile/login", handler: h.Users.RecordLogin, access: authed},
		{method: http.MethodPost, path: "/users/profile/avatar", handler: h.Users.UploadAvatar, access: authed},
		{method: http.MethodGet, path: "/users/profile/avatar/url", handler: h.Users.AvatarURL, access: authed},
		{method: http.MethodGet, path: "/users/:id", handler: h.Users.FindOne, access: admin, cached: true},
		{method: http.MethodPatch, path: "/users/:id", handler: h.Users.Update, access: admin},
		{method: http.MethodDelete, path: "/users/:id", handler: h.Users.Remove, access: admin},
		{method: http.MethodPost, path: "/users/:clerkId/deactivate", handler: h.Users.Deactivate, access: admin},
		{method: http.MethodPost, path: "/users/:clerkId/activate", handler: h.Users.Activate, access: admin},

		{method: http.MethodPost, path: "/payments/intents", handler: h.Payments.CreatePaymentIntent, access: authed},
		{method: http.MethodGet, path: "/payments/intents/:id", handler: h.Payments.GetPaymentIntent, access: authed},
		{method: http.MethodPost, path: "/webhooks/stripe", handler: h.Payments.StripeWebhook, access: public},
	}
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, deps Deps, h Handlers) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	e.HTTPErrorHandler = middleware.ErrorHandler(log)
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowCredentials: true,
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
		},
	}))
	if deps.RateLimiter != nil {
		e.Use(middleware.RateLimit(deps.RateLimiter))
	}

	handlerLog := middleware.HandlerLogger(log)
	for _, r := range routes(h) {
		mws := middleware.Guard(deps.Verifier, r.access, log)
		mws = append(mws, handlerLog)
		if r.cached && deps.ResponseCache != nil {
			mws = append(mws, middleware.CacheResponse(deps.ResponseCache, middleware.ResponseCacheTTL, log))
		}
		e.Add(r.method, r.path, r.handler, mws...)
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
