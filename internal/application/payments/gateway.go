package payments

import (
	"context"
	"errors"
)

// IntentStatusSucceeded is the only PaymentIntent status that proves funds were captured.
const IntentStatusSucceeded = "succeeded"

// ErrNotConfigured is returned when no payment provider key is set.
var ErrNotConfigured = errors.New("Payment provider is not configured")

// Gateway is the slice of the payment processor the purchase flow depends on.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// IntentRequest describes a one-off charge. Amount is in the smallest currency unit.
type IntentRequest struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
}

// Succeeded reports whether the gateway considers the charge settled.
func (i *Intent) Succeeded() bool {
	return i != nil && i.Status == IntentStatusSucceeded
}

// CheckoutRequest creates a hosted subscription checkout for a single price.
type CheckoutRequest struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
	Locale     string
}

type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}
