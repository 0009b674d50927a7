package videos

import (
	"errors"

	videosvc "video-learning-backend/internal/application/videos"
	"video-learning-backend/internal/middleware"
	"video-learning-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *videosvc.Service
}

// UploadURL POST /api/v1/videos/upload-url
func (h *Handlers) UploadURL(c *fiber.Ctx) error {
	var body videosvc.UploadRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	body.UserID = actingUser(c, body.UserID)
	if !middleware.ActsAsSelf(c, body.UserID) {
		return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
	}
	res, err := h.Service.PrepareUpload(c.UserContext(), body)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Upload URL created", res, nil)
}

// Register POST /api/v1/videos
func (h *Handlers) Register(c *fiber.Ctx) error {
	var body videosvc.RegisterInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	body.UserID = actingUser(c, body.UserID)
	if !middleware.ActsAsSelf(c, body.UserID) {
		return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
	}
	v, err := h.Service.Register(c.UserContext(), body)
	if err != nil {
		return fail(c, err)
	}
	return response.SuccessCreated(c, "Video registered", v, nil)
}

// GetVideo GET /api/v1/videos/:id
func (h *Handlers) GetVideo(c *fiber.Ctx) error {
	v, err := h.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Video found", v, nil)
}

// DeleteVideo DELETE /api/v1/videos/:id
func (h *Handlers) DeleteVideo(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"userId"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	userID := body.UserID
	if userID == "" {
		userID = c.Query("userId")
	}
	userID = actingUser(c, userID)
	if !middleware.ActsAsSelf(c, userID) {
		return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
	}
	if err := h.Service.Delete(c.UserContext(), c.Params("id"), userID); err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Video deleted successfully", fiber.Map{"success": true}, nil)
}

// actingUser prefers the verified token subject over a client-supplied id.
func actingUser(c *fiber.Ctx, supplied string) string {
	if sub := middleware.AuthUserID(c); sub != "" && supplied == "" {
		return sub
	}
	return supplied
}

func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, videosvc.ErrInvalidInput):
		return response.ErrorCode(c, err.Error(), fiber.StatusBadRequest, "INVALID_INPUT")
	case errors.Is(err, videosvc.ErrVideoNotFound):
		return response.ErrorCode(c, err.Error(), fiber.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, videosvc.ErrForbidden):
		return response.ErrorCode(c, "Forbidden", fiber.StatusForbidden, "FORBIDDEN")
	case errors.Is(err, videosvc.ErrNotConfigured):
		return response.ErrorCode(c, err.Error(), fiber.StatusServiceUnavailable, "NOT_CONFIGURED")
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("video request failed")
	return response.ErrorCode(c, "Internal server error", fiber.StatusInternalServerError, "STORAGE_ERROR")
}
