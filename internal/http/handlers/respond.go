package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/apperr"
	"github.com/ZenRasta/IbisExchange-sub000/internal/http/dto"
	"github.com/ZenRasta/IbisExchange-sub000/internal/middleware"
)

// writeError maps service errors to the stable API error shape. Internal
// causes are logged with the request id and never shown to the caller.
func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	code := apperr.CodeOf(err)
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	if code == apperr.CodeInternal {
		log.Error("request failed",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(apperr.HTTPStatus(code)).JSON(dto.ErrorResponse{
		Error:     apperr.UserMessage(err),
		Code:      string(code),
		RequestID: reqID,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}
