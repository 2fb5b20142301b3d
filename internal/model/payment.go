package model

import "github.com/shopspring/decimal"

// PaymentIntentStatus mirrors the provider's payment intent lifecycle.
type PaymentIntentStatus string

const (
	PaymentIntentRequiresPaymentMethod PaymentIntentStatus = "requires_payment_method"
	PaymentIntentProcessing            PaymentIntentStatus = "processing"
	PaymentIntentSucceeded             PaymentIntentStatus = "succeeded"
	PaymentIntentCanceled              PaymentIntentStatus = "canceled"
)

// PaymentIntent is the provider-agnostic view of a payment intent.
type PaymentIntent struct {
	ID           string              `json:"id"`
	ClientSecret string              `json:"clientSecret,omitempty"`
	CustomerID   string              `json:"customerId,omitempty"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency"`
	Status       PaymentIntentStatus `json:"status"`
}

// CreatePaymentIntentRequest is the payload for starting a payment.
type CreatePaymentIntentRequest struct {
	Amount   string `json:"amount" validate:"required" example:"19.99"`
	Currency string `json:"currency" validate:"required,len=3" example:"usd"`
}

// Customer is a payment provider customer.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// WebhookEvent is a verified provider webhook notification.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
