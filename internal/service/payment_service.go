package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"usersvc/internal/auth"
	"usersvc/internal/errors"
	"usersvc/internal/model"
	"usersvc/internal/payment"
)

// PaymentService starts and inspects payments for the calling user.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, identity *auth.ClerkUser, req model.CreatePaymentIntentRequest) (*model.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, identity *auth.ClerkUser, id string) (*model.PaymentIntent, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*model.WebhookEvent, error)
}

type paymentService struct {
	users    UserService
	provider payment.Provider
	log      *zap.Logger
}

// NewPaymentService builds a PaymentService.
func NewPaymentService(users UserService, provider payment.Provider, log *zap.Logger) PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &paymentService{users: users, provider: provider, log: log.Named("payment_service")}
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, identity *auth.ClerkUser, req model.CreatePaymentIntentRequest) (*model.PaymentIntent, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", errors.ErrInvalidAmount, req.Amount)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", errors.ErrInvalidAmount)
	}

	user, err := s.users.GetUserProfile(ctx, identity)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == "" {
		return nil, errors.ErrNoPaymentCustomer
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, payment.CreatePaymentIntentInput{
		Amount:     amount,
		Currency:   strings.ToLower(req.Currency),
		CustomerID: user.StripeCustomerID,
		Metadata: map[string]string{
			"clerkId": user.ClerkID,
			"userId":  user.ID.Hex(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment intent created",
		zap.String("operation", "createPaymentIntent"),
		zap.String("clerk_id", user.ClerkID),
		zap.String("payment_intent_id", intent.ID),
		zap.String("amount", amount.String()),
	)
	return intent, nil
}

// GetPaymentIntent returns an intent only when it belongs to the caller's customer.
func (s *paymentService) GetPaymentIntent(ctx context.Context, identity *auth.ClerkUser, id string) (*model.PaymentIntent, error) {
	user, err := s.users.GetUserProfile(ctx, identity)
	if err != nil {
		return nil, err
	}

	intent, err := s.provider.RetrievePaymentIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == "" || intent.CustomerID != user.StripeCustomerID {
		s.log.Warn("payment intent belongs to another customer",
			zap.String("operation", "getPaymentIntent"),
			zap.String("clerk_id", user.ClerkID),
			zap.String("payment_intent_id", id),
		)
		return nil, errors.ErrForbidden
	}
	return intent, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*model.WebhookEvent, error) {
	evt, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		return nil, err
	}
	s.log.Info("webhook received",
		zap.String("operation", "handleWebhook"),
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
	)
	return evt, nil
}
