package handler

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"usersvc/internal/errors"
	"usersvc/internal/model"
	"usersvc/internal/payment"
	"usersvc/internal/service"
)

const maxWebhookBody = 1 << 20

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// WebhookResponse acknowledges a webhook delivery.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// CreatePaymentIntent godoc
// @Summary Start a payment for the current user
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreatePaymentIntentRequest true "Amount and currency"
// @Success 201 {object} model.PaymentIntent
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /payments/intents [post]
func (h *PaymentHandler) CreatePaymentIntent(c echo.Context) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	var req model.CreatePaymentIntentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	intent, err := h.paymentService.CreatePaymentIntent(c.Request().Context(), identity, req)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, intent)
}

// GetPaymentIntent godoc
// @Summary Get a payment intent of the current user
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment intent ID"
// @Success 200 {object} model.PaymentIntent
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /payments/intents/{id} [get]
func (h *PaymentHandler) GetPaymentIntent(c echo.Context) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	intent, err := h.paymentService.GetPaymentIntent(c.Request().Context(), identity, c.Param("id"))
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, intent)
}

// StripeWebhook godoc
// @Summary Receive Stripe webhook events
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} WebhookResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *PaymentHandler) StripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest("unreadable body", "INVALID_REQUEST")
	}

	_, err = h.paymentService.HandleWebhook(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, WebhookResponse{Received: true})
	case stderrors.Is(err, payment.ErrWebhookNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, errors.ErrorResponse{
			Error: "webhooks are not configured",
			Code:  "WEBHOOK_DISABLED",
		})
	case stderrors.Is(err, payment.ErrInvalidSignature):
		return badRequest("invalid signature", "INVALID_SIGNATURE")
	default:
		return respondError(err)
	}
}
