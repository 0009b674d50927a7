package purchases

import (
	"errors"

	"video-learning-backend/internal/application/payments"
)

var (
	ErrInvalidInput        = errors.New("Invalid input")
	ErrVideoNotFound       = errors.New("Video not found")
	ErrPurchaseNotFound    = errors.New("Purchase not found")
	ErrAlreadyPurchased    = errors.New("Video already purchased")
	ErrPaymentNotCompleted = errors.New("Payment not completed")
	ErrPaymentProvider     = errors.New("Payment provider error")
	ErrStorage             = errors.New("Storage error")
	ErrNotConfigured       = payments.ErrNotConfigured
)

// Error codes returned to clients in error.details.code.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyPurchased    = "ALREADY_PURCHASED"
	CodePaymentNotCompleted = "PAYMENT_NOT_COMPLETED"
	CodePaymentProvider     = "PAYMENT_PROVIDER_ERROR"
	CodeStorage             = "STORAGE_ERROR"
	CodeNotConfigured       = "NOT_CONFIGURED"
	CodeInternal            = "INTERNAL"
)

// Code classifies err into one of the client-facing error codes.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrVideoNotFound), errors.Is(err, ErrPurchaseNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyPurchased):
		return CodeAlreadyPurchased
	case errors.Is(err, ErrPaymentNotCompleted):
		return CodePaymentNotCompleted
	case errors.Is(err, ErrPaymentProvider):
		return CodePaymentProvider
	case errors.Is(err, ErrStorage):
		return CodeStorage
	case errors.Is(err, ErrNotConfigured):
		return CodeNotConfigured
	}
	return CodeInternal
}
