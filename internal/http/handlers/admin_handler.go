package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/http/dto"
	"github.com/ZenRasta/IbisExchange-sub000/internal/middleware"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
	"github.com/ZenRasta/IbisExchange-sub000/internal/services"
)

// AdminHandler serves the arbitration desk and platform ops. All routes
// sit behind AdminMiddleware.
type AdminHandler struct {
	disputeService *services.DisputeService
	userRepo       *repositories.UserRepo
	feeRepo        *repositories.FeeRepo
	log            *zap.Logger
}

func NewAdminHandler(
	disputeService *services.DisputeService,
	userRepo *repositories.UserRepo,
	feeRepo *repositories.FeeRepo,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		disputeService: disputeService,
		userRepo:       userRepo,
		feeRepo:        feeRepo,
		log:            log,
	}
}

// ListDisputes returns open cases, oldest first.
// GET /admin/disputes
func (h *AdminHandler) ListDisputes(c *fiber.Ctx) error {
	disputes, err := h.disputeService.ListOpen(c.Context(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: disputes})
}

// GetDispute returns a case with evidence for review.
// GET /admin/disputes/:id
func (h *AdminHandler) GetDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	dispute, evidence, err := h.disputeService.Get(c.Context(), disputeID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DisputeDetailResponse{
		Dispute:  dispute,
		Evidence: evidence,
	}})
}

// ReviewDispute marks a case as under review.
// POST /admin/disputes/:id/review
func (h *AdminHandler) ReviewDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	if err := h.disputeService.MarkUnderReview(c.Context(), disputeID, middleware.GetUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ResolveDispute applies the arbiter's ruling on chain and settles the
// mirror.
// POST /admin/disputes/:id/resolve
func (h *AdminHandler) ResolveDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.disputeService.Resolve(c.Context(), disputeID, middleware.GetUserID(c), req.Action, req.Notes); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// SetKYCTier raises or lowers a user's verification tier.
// PUT /admin/users/:id/kyc-tier
func (h *AdminHandler) SetKYCTier(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}
	var req dto.SetKYCTierRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Tier < 0 || req.Tier > 3 {
		return badRequest(c, "tier must be between 0 and 3")
	}
	if err := h.userRepo.SetKYCTier(c.Context(), userID, req.Tier); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// SetBanned bans or unbans a user.
// PUT /admin/users/:id/banned
func (h *AdminHandler) SetBanned(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}
	var req dto.SetBannedRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.userRepo.SetBanned(c.Context(), userID, req.Banned); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// FeeTotals reports settled platform revenue.
// GET /admin/fees/total
func (h *AdminHandler) FeeTotals(c *fiber.Ctx) error {
	total, err := h.feeRepo.TotalSettled(c.Context())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"total_settled_usdt": total}})
}
