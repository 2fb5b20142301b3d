package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	apperrors "usersvc/internal/errors"
	"usersvc/internal/model"
)

const provider = "stripe"

// MaxMinorAmount is the largest amount, in minor units, Stripe accepts for a charge.
const MaxMinorAmount = 99999999

var maxMinor = decimal.NewFromInt(MaxMinorAmount)

// ErrWebhookNotConfigured is returned when no signing secret is available.
var ErrWebhookNotConfigured = errors.New("webhook secret not configured")

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// zeroDecimal lists currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// CreateCustomerInput describes a new provider customer.
type CreateCustomerInput struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// CreatePaymentIntentInput describes a payment to start.
type CreatePaymentIntentInput struct {
	Amount     decimal.Decimal
	Currency   string
	CustomerID string
	Metadata   map[string]string
}

// Provider is the payment provider surface used by the services.
type Provider interface {
	CreateCustomer(ctx context.Context, in CreateCustomerInput) (*model.Customer, error)
	CreatePaymentIntent(ctx context.Context, in CreatePaymentIntentInput) (*model.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*model.PaymentIntent, error)
	ConstructEvent(payload []byte, signature string) (*model.WebhookEvent, error)
}

// StripeClient talks to the Stripe API.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	log           *zap.Logger
}

var _ Provider = (*StripeClient)(nil)

// NewStripeClient creates a Stripe client. backends may be nil to use the
// default Stripe endpoints.
func NewStripeClient(secretKey, webhookSecret string, backends *stripe.Backends, log *zap.Logger) *StripeClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeClient{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		log:           log.Named("stripe"),
	}
}

// NewBackends builds Stripe backends pointed at url, logging through log.
// It is used to target stripe-mock or a test server.
func NewBackends(url string, log *zap.Logger) *stripe.Backends {
	cfg := &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     log.Sugar(),
	}
	return &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
}

// CreateCustomer creates a customer record with the provider.
func (s *StripeClient) CreateCustomer(ctx context.Context, in CreateCustomerInput) (*model.Customer, error) {
	params := &stripe.CustomerParams{Email: stripe.String(in.Email)}
	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	c, err := s.api.Customers.New(params)
	if err != nil {
		s.log.Error("failed to create customer",
			zap.String("operation", "createCustomer"),
			zap.String("email", in.Email),
			zap.Error(err),
			zap.Stack("stack"),
		)
		return nil, apperrors.Upstream(provider, "createCustomer", err)
	}

	s.log.Info("created customer",
		zap.String("operation", "createCustomer"),
		zap.String("customer_id", c.ID),
		zap.String("email", in.Email),
	)
	return &model.Customer{ID: c.ID, Email: c.Email}, nil
}

// CreatePaymentIntent starts a payment with automatic payment methods enabled.
func (s *StripeClient) CreatePaymentIntent(ctx context.Context, in CreatePaymentIntentInput) (*model.PaymentIntent, error) {
	currency := strings.ToLower(in.Currency)
	minor, err := ToMinorUnits(in.Amount, currency)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("failed to create payment intent",
			zap.String("operation", "createPaymentIntent"),
			zap.String("amount", in.Amount.String()),
			zap.String("currency", currency),
			zap.Error(err),
			zap.Stack("stack"),
		)
		return nil, apperrors.Upstream(provider, "createPaymentIntent", err)
	}

	s.log.Info("created payment intent",
		zap.String("operation", "createPaymentIntent"),
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount", minor),
		zap.String("currency", currency),
	)
	return toPaymentIntent(pi), nil
}

// RetrievePaymentIntent fetches a payment intent by id.
func (s *StripeClient) RetrievePaymentIntent(ctx context.Context, id string) (*model.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		s.log.Error("failed to retrieve payment intent",
			zap.String("operation", "retrievePaymentIntent"),
			zap.String("payment_intent_id", id),
			zap.Error(err),
			zap.Stack("stack"),
		)
		return nil, apperrors.Upstream(provider, "retrievePaymentIntent", err)
	}

	s.log.Info("retrieved payment intent",
		zap.String("operation", "retrievePaymentIntent"),
		zap.String("payment_intent_id", id),
	)
	return toPaymentIntent(pi), nil
}

// ConstructEvent verifies a webhook payload against its Stripe-Signature header.
func (s *StripeClient) ConstructEvent(payload []byte, signature string) (*model.WebhookEvent, error) {
	if s.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.log.Warn("webhook verification failed", zap.Error(err))
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	return &model.WebhookEvent{ID: evt.ID, Type: string(evt.Type)}, nil
}

// ToMinorUnits converts a decimal amount to the currency's smallest unit.
// Amounts with more precision than the currency allows, or above
// MaxMinorAmount, are rejected.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if !amount.IsPositive() {
		return 0, apperrors.ErrInvalidAmount
	}
	places := int32(2)
	if zeroDecimal[strings.ToLower(currency)] {
		places = 0
	}
	shifted := amount.Shift(places)
	if !shifted.Equal(shifted.Truncate(0)) || shifted.GreaterThan(maxMinor) {
		return 0, apperrors.ErrInvalidAmount
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits converts a smallest-unit amount back to a decimal.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	if zeroDecimal[strings.ToLower(currency)] {
		return decimal.NewFromInt(minor)
	}
	return decimal.New(minor, -2)
}

func toPaymentIntent(pi *stripe.PaymentIntent) *model.PaymentIntent {
	out := &model.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       FromMinorUnits(pi.Amount, string(pi.Currency)),
		Currency:     string(pi.Currency),
		Status:       model.PaymentIntentStatus(pi.Status),
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	return out
}
