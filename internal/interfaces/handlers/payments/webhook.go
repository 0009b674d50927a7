package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	purchasesvc "video-learning-backend/internal/application/purchases"
	"video-learning-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Reconciler promotes the purchase behind a settled payment intent.
type Reconciler interface {
	Reconcile(ctx context.Context, paymentIntentID string) (*domain.Purchase, error)
}

type WebhookHandler struct {
	Purchases     Reconciler
	WebhookSecret string
}

// HandleWebhook POST /api/v1/stripe/webhook — raw body, signature verification, then process.
// Domain failures still answer 200 so Stripe does not retry events we cannot act on.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}
	if wh.WebhookSecret == "" {
		log.Warn().Msg("Stripe webhook received but STRIPE_WEBHOOK_SECRET is not set")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: missing signature or secret")
	}

	event, err := webhook.ConstructEventWithOptions(rawBody, sig, wh.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Msg("Stripe webhook signature verification failed")
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded || wh.Purchases == nil {
		return c.Status(fiber.StatusOK).SendString("ok")
	}

	var pi struct {
		ID string `json:"id"`
	}
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &pi) != nil || pi.ID == "" {
		log.Warn().Str("event_id", event.ID).Msg("Stripe webhook payment_intent payload unreadable")
		return c.Status(fiber.StatusOK).SendString("ok")
	}

	p, err := wh.Purchases.Reconcile(c.UserContext(), pi.ID)
	switch {
	case err == nil:
		log.Info().Str("event_id", event.ID).Str("payment_intent_id", pi.ID).Str("video_id", p.VideoID).Msg("purchase completed from webhook")
	case errors.Is(err, purchasesvc.ErrPurchaseNotFound):
		log.Warn().Str("event_id", event.ID).Str("payment_intent_id", pi.ID).Msg("webhook intent has no purchase row")
	default:
		log.Error().Err(err).Str("event_id", event.ID).Str("payment_intent_id", pi.ID).Msg("webhook reconciliation failed")
	}
	return c.Status(fiber.StatusOK).SendString("ok")
}
