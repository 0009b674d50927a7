package purchases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"video-learning-backend/internal/application/payments"
	"video-learning-backend/internal/domain"
	"video-learning-backend/internal/infrastructure/metrics"
	"video-learning-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	SourceConfirm = "confirm"
	SourceWebhook = "webhook"
)

// Service runs the purchase flow: intent creation, confirmation and status.
// Gateway may be nil when no payment provider is configured; Cache may be nil.
type Service struct {
	Store    Store
	Gateway  payments.Gateway
	Cache    StatusCache
	Currency string
}

type CreateIntentInput struct {
	VideoID        string
	UserID         string
	IdempotencyKey string
}

type CreateIntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreateIntent starts a purchase attempt: it creates a payment intent for the
// video's price and records (or replaces) the pending purchase for the pair.
// The intent is always created before the row is written.
func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error) {
	videoID := strings.TrimSpace(in.VideoID)
	if videoID == "" || !validation.IsValidUserID(in.UserID) {
		return nil, fmt.Errorf("%w: videoId and a valid userId are required", ErrInvalidInput)
	}
	if s.Gateway == nil {
		return nil, ErrNotConfigured
	}
	userID := uuid.MustParse(in.UserID)

	video, err := s.Store.FindVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: find video: %v", ErrStorage, err)
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}

	existing, err := s.Store.FindByPair(ctx, userID, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: find purchase: %v", ErrStorage, err)
	}
	if existing.IsCompleted() {
		return nil, ErrAlreadyPurchased
	}

	pi, err := s.Gateway.CreateIntent(ctx, payments.IntentRequest{
		Amount:   video.Price,
		Currency: s.currency(),
		Metadata: map[string]string{
			"videoId":    video.ID,
			"userId":     userID.String(),
			"videoTitle": video.Title,
		},
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create intent: %v", ErrPaymentProvider, err)
	}

	if existing != nil && existing.StripePaymentIntentID == pi.ID {
		// retried with the same idempotency key; the pending row already points at this intent
		return &CreateIntentResult{ClientSecret: pi.ClientSecret, PaymentIntentID: pi.ID}, nil
	}

	row := &domain.Purchase{
		UserID:                userID,
		VideoID:               video.ID,
		StripePaymentIntentID: pi.ID,
		Amount:                video.Price,
		Currency:              s.currency(),
		Status:                domain.PurchaseStatusPending,
	}
	written, err := s.Store.UpsertPending(ctx, row)
	if err != nil {
		metrics.IncOrphanedIntent()
		log.Error().Err(err).
			Str("payment_intent_id", pi.ID).
			Str("user_id", userID.String()).
			Str("video_id", video.ID).
			Msg("purchase: pending row not written, payment intent is orphaned")
		return nil, fmt.Errorf("%w: upsert pending: %v", ErrStorage, err)
	}
	if !written {
		metrics.IncOrphanedIntent()
		log.Warn().
			Str("payment_intent_id", pi.ID).
			Str("user_id", userID.String()).
			Str("video_id", video.ID).
			Msg("purchase: completed while intent was being created, payment intent is orphaned")
		return nil, ErrAlreadyPurchased
	}

	metrics.IncIntentCreated()
	return &CreateIntentResult{ClientSecret: pi.ClientSecret, PaymentIntentID: pi.ID}, nil
}

// Confirm re-reads the intent from the gateway and, if it succeeded, marks the
// caller's purchase completed. Repeating it is harmless.
func (s *Service) Confirm(ctx context.Context, paymentIntentID, userID string) (*domain.Purchase, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" || !validation.IsValidUserID(userID) {
		return nil, fmt.Errorf("%w: paymentIntentId and a valid userId are required", ErrInvalidInput)
	}
	if s.Gateway == nil {
		return nil, ErrNotConfigured
	}
	pi, err := s.Gateway.RetrieveIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve intent: %v", ErrPaymentProvider, err)
	}
	return s.promote(ctx, pi, uuid.MustParse(userID), SourceConfirm)
}

// Reconcile promotes the purchase behind a gateway-notified intent. The user is
// taken from the intent metadata as returned by the gateway, never from the
// notification body.
func (s *Service) Reconcile(ctx context.Context, paymentIntentID string) (*domain.Purchase, error) {
	if paymentIntentID == "" {
		return nil, fmt.Errorf("%w: paymentIntentId is required", ErrInvalidInput)
	}
	if s.Gateway == nil {
		return nil, ErrNotConfigured
	}
	pi, err := s.Gateway.RetrieveIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve intent: %v", ErrPaymentProvider, err)
	}
	userID := pi.Metadata["userId"]
	if !validation.IsValidUserID(userID) {
		return nil, fmt.Errorf("%w: intent %s has no userId metadata", ErrInvalidInput, pi.ID)
	}
	return s.promote(ctx, pi, uuid.MustParse(userID), SourceWebhook)
}

// gatewaySnapshot is the part of a settled intent kept with the purchase.
// The client secret is left out.
type gatewaySnapshot struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Service) promote(ctx context.Context, pi *payments.Intent, userID uuid.UUID, source string) (*domain.Purchase, error) {
	if !pi.Succeeded() {
		return nil, fmt.Errorf("%w: intent status is %q", ErrPaymentNotCompleted, pi.Status)
	}
	snapshot, err := json.Marshal(gatewaySnapshot{
		ID:       pi.ID,
		Status:   pi.Status,
		Amount:   pi.Amount,
		Currency: pi.Currency,
		Metadata: pi.Metadata,
	})
	if err != nil {
		log.Warn().Err(err).Str("payment_intent_id", pi.ID).Msg("purchase: gateway snapshot not encoded")
		snapshot = nil
	}
	p, err := s.Store.MarkCompleted(ctx, pi.ID, userID, snapshot)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			return nil, err
		}
		log.Error().Err(err).
			Str("payment_intent_id", pi.ID).
			Str("user_id", userID.String()).
			Msg("purchase: payment succeeded but completion was not recorded")
		return nil, fmt.Errorf("%w: mark completed: %v", ErrStorage, err)
	}
	s.remember(ctx, p)
	metrics.IncPurchaseCompleted(source)
	return p, nil
}

// Status returns the completed purchase for the pair, if any. Pending rows do
// not count as purchased.
func (s *Service) Status(ctx context.Context, videoID, userID string) (*domain.Purchase, bool, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" || userID == "" {
		return nil, false, fmt.Errorf("%w: videoId and userId are required", ErrInvalidInput)
	}
	if !validation.IsValidUserID(userID) {
		return nil, false, fmt.Errorf("%w: userId is not a valid id", ErrInvalidInput)
	}
	uid := uuid.MustParse(userID)

	if s.Cache != nil {
		if p, ok := s.Cache.GetCompleted(ctx, uid.String(), videoID); ok {
			return p, true, nil
		}
	}
	p, err := s.Store.FindByPair(ctx, uid, videoID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: find purchase: %v", ErrStorage, err)
	}
	if !p.IsCompleted() {
		return nil, false, nil
	}
	s.remember(ctx, p)
	return p, true, nil
}

func (s *Service) remember(ctx context.Context, p *domain.Purchase) {
	if s.Cache != nil {
		s.Cache.PutCompleted(ctx, p)
	}
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return "jpy"
	}
	return strings.ToLower(s.Currency)
}
