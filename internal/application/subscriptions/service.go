package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"video-learning-backend/internal/application/payments"
)

var (
	ErrInvalidInput    = errors.New("Invalid input")
	ErrPaymentProvider = errors.New("Payment provider error")
	ErrNotConfigured   = payments.ErrNotConfigured
)

const checkoutLocale = "ja"

// Service creates and inspects hosted subscription checkouts.
// Gateway is nil when no payment provider is configured.
type Service struct {
	Gateway payments.Gateway
}

type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// SessionStatus is what the dashboard shows after returning from checkout.
type SessionStatus struct {
	Status        string `json:"status"`
	CustomerEmail string `json:"customerEmail"`
	PlanName      string `json:"planName"`
}

// CreateCheckout starts a subscription checkout for priceID. origin is the
// frontend base URL the user returns to.
func (s *Service) CreateCheckout(ctx context.Context, priceID, planName, origin string) (*CheckoutResult, error) {
	priceID = strings.TrimSpace(priceID)
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if priceID == "" || origin == "" {
		return nil, fmt.Errorf("%w: priceId and origin are required", ErrInvalidInput)
	}
	if s.Gateway == nil {
		return nil, ErrNotConfigured
	}
	sess, err := s.Gateway.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		PriceID:    priceID,
		SuccessURL: origin + "/dashboard?session_id={CHECKOUT_SESSION_ID}&success=true",
		CancelURL:  origin + "/?canceled=true",
		Metadata:   map[string]string{"planName": planName},
		Locale:     checkoutLocale,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrPaymentProvider, err)
	}
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// CheckSession reads a checkout session back from the gateway.
func (s *Service) CheckSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	if s.Gateway == nil {
		return nil, ErrNotConfigured
	}
	sess, err := s.Gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve session: %v", ErrPaymentProvider, err)
	}
	return &SessionStatus{
		Status:        sess.PaymentStatus,
		CustomerEmail: sess.CustomerEmail,
		PlanName:      sess.Metadata["planName"],
	}, nil
}
