package subscriptions

import (
	"errors"

	subsvc "video-learning-backend/internal/application/subscriptions"
	"video-learning-backend/internal/middleware"
	"video-learning-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *subsvc.Service
	// FallbackOrigin is used when the request carries no Origin header.
	FallbackOrigin string
}

// CreateCheckoutSession POST /api/v1/subscriptions/create-checkout-session
func (h *Handlers) CreateCheckoutSession(c *fiber.Ctx) error {
	var body struct {
		PriceID  string `json:"priceId"`
		PlanName string `json:"planName"`
	}
	if err := c.BodyParser(&body); err != nil || body.PriceID == "" {
		return response.ErrorCode(c, "Price ID is required", fiber.StatusBadRequest, "INVALID_INPUT")
	}
	origin := c.Get(fiber.HeaderOrigin)
	if origin == "" {
		origin = h.FallbackOrigin
	}
	res, err := h.Service.CreateCheckout(c.UserContext(), body.PriceID, body.PlanName, origin)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

// CheckSubscription GET /api/v1/subscriptions/check-subscription?session_id=
func (h *Handlers) CheckSubscription(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return response.ErrorCode(c, "Session ID is required", fiber.StatusBadRequest, "INVALID_INPUT")
	}
	st, err := h.Service.CheckSession(c.UserContext(), sessionID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(st)
}

func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, subsvc.ErrInvalidInput):
		return response.ErrorCode(c, err.Error(), fiber.StatusBadRequest, "INVALID_INPUT")
	case errors.Is(err, subsvc.ErrNotConfigured):
		return response.ErrorCode(c, err.Error(), fiber.StatusServiceUnavailable, "NOT_CONFIGURED")
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("subscription request failed")
	return response.ErrorCode(c, "Failed to reach payment provider", fiber.StatusInternalServerError, "PAYMENT_PROVIDER_ERROR")
}
