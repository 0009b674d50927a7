package purchases

import (
	"errors"
	"strings"

	purchasesvc "video-learning-backend/internal/application/purchases"
	"video-learning-backend/internal/infrastructure/metrics"
	"video-learning-backend/internal/middleware"
	"video-learning-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *purchasesvc.Service
}

// CreatePaymentIntent POST /api/v1/payments/create-payment-intent
func (h *Handlers) CreatePaymentIntent(c *fiber.Ctx) error {
	var body struct {
		VideoID        string `json:"videoId"`
		UserID         string `json:"userId"`
		IdempotencyKey string `json:"idempotencyKey"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.ErrorCode(c, "Video ID and User ID are required", fiber.StatusBadRequest, purchasesvc.CodeInvalidInput)
	}
	if body.VideoID == "" || body.UserID == "" {
		return response.ErrorCode(c, "Video ID and User ID are required", fiber.StatusBadRequest, purchasesvc.CodeInvalidInput)
	}
	if !middleware.ActsAsSelf(c, body.UserID) {
		return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
	}
	key := strings.TrimSpace(c.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(body.IdempotencyKey)
	}

	res, err := h.Service.CreateIntent(c.UserContext(), purchasesvc.CreateIntentInput{
		VideoID:        body.VideoID,
		UserID:         body.UserID,
		IdempotencyKey: key,
	})
	if err != nil {
		return fail(c, "create_intent", err)
	}
	return c.JSON(res)
}

// ConfirmPayment POST /api/v1/payments/confirm-payment
func (h *Handlers) ConfirmPayment(c *fiber.Ctx) error {
	var body struct {
		PaymentIntentID string `json:"paymentIntentId"`
		UserID          string `json:"userId"`
	}
	if err := c.BodyParser(&body); err != nil || body.PaymentIntentID == "" || body.UserID == "" {
		return response.ErrorCode(c, "Payment Intent ID and User ID are required", fiber.StatusBadRequest, purchasesvc.CodeInvalidInput)
	}
	if !middleware.ActsAsSelf(c, body.UserID) {
		return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
	}
	if _, err := h.Service.Confirm(c.UserContext(), body.PaymentIntentID, body.UserID); err != nil {
		return fail(c, "confirm", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment confirmed successfully",
	})
}

// CheckPurchase GET /api/v1/purchases/check-purchase?videoId=&userId=
func (h *Handlers) CheckPurchase(c *fiber.Ctx) error {
	videoID := c.Query("videoId")
	userID := c.Query("userId")
	if videoID == "" || userID == "" {
		return response.ErrorCode(c, "Video ID and User ID are required", fiber.StatusBadRequest, purchasesvc.CodeInvalidInput)
	}
	if !middleware.ActsAsSelf(c, userID) {
		return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
	}
	p, ok, err := h.Service.Status(c.UserContext(), videoID, userID)
	if err != nil {
		return fail(c, "check_purchase", err)
	}
	if !ok {
		return c.JSON(fiber.Map{"isPurchased": false, "purchase": nil})
	}
	return c.JSON(fiber.Map{"isPurchased": true, "purchase": p})
}

// fail maps a purchase error onto the error envelope. Server-side failures are
// logged with their cause and answered with a generic message.
func fail(c *fiber.Ctx, operation string, err error) error {
	code := purchasesvc.Code(err)
	metrics.IncPurchaseFailure(operation, code)

	status, message := fiber.StatusInternalServerError, "Internal server error"
	switch code {
	case purchasesvc.CodeInvalidInput:
		status, message = fiber.StatusBadRequest, err.Error()
	case purchasesvc.CodeAlreadyPurchased:
		status, message = fiber.StatusBadRequest, purchasesvc.ErrAlreadyPurchased.Error()
	case purchasesvc.CodePaymentNotCompleted:
		status, message = fiber.StatusBadRequest, purchasesvc.ErrPaymentNotCompleted.Error()
	case purchasesvc.CodeNotFound:
		status, message = fiber.StatusNotFound, notFoundMessage(err)
	case purchasesvc.CodeNotConfigured:
		status, message = fiber.StatusServiceUnavailable, purchasesvc.ErrNotConfigured.Error()
	case purchasesvc.CodePaymentProvider:
		message = "Failed to reach payment provider"
	}
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).
			Str("trace_id", middleware.GetTraceID(c)).
			Str("operation", operation).
			Str("code", code).
			Msg("purchase request failed")
	}
	return response.ErrorCode(c, message, status, code)
}

func notFoundMessage(err error) string {
	if errors.Is(err, purchasesvc.ErrPurchaseNotFound) {
		return purchasesvc.ErrPurchaseNotFound.Error()
	}
	return purchasesvc.ErrVideoNotFound.Error()
}
