package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/http/dto"
	"github.com/ZenRasta/IbisExchange-sub000/internal/middleware"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
)

type UserHandler struct {
	userRepo *repositories.UserRepo
	log      *zap.Logger
}

func NewUserHandler(userRepo *repositories.UserRepo, log *zap.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

// GetProfile is the public reputation view counterparties check before
// accepting an order.
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	user, err := h.userRepo.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"id":                user.ID,
		"username":          user.Username,
		"kyc_tier":          user.KYCTier,
		"total_trades":      user.TotalTrades,
		"successful_trades": user.SuccessfulTrades,
		"total_volume":      user.TotalVolume,
		"reputation_score":  user.ReputationScore,
		"created_at":        user.CreatedAt,
	}})
}

func (h *UserHandler) Ping(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if err := h.userRepo.UpdateLastActive(c.Context(), userID); err != nil {
		h.log.Error("failed to update last_active", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
