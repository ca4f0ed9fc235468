package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/http/dto"
	"github.com/ZenRasta/IbisExchange-sub000/internal/middleware"
	"github.com/ZenRasta/IbisExchange-sub000/internal/services"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
	log            *zap.Logger
}

func NewDisputeHandler(disputeService *services.DisputeService, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService, log: log}
}

// RaiseDispute freezes the escrow and opens an arbitration case.
// POST /trades/:id/dispute
func (h *DisputeHandler) RaiseDispute(c *fiber.Ctx) error {
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	var req dto.RaiseDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	dispute, err := h.disputeService.Raise(c.Context(), tradeID, middleware.GetUserID(c), req.Reason, req.Description)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

// AddEvidence attaches a statement to an open dispute.
// POST /disputes/:id/evidence
func (h *DisputeHandler) AddEvidence(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	var req dto.AddEvidenceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Text == "" {
		return badRequest(c, "text is required")
	}

	ev, err := h.disputeService.AddEvidence(c.Context(), disputeID, middleware.GetUserID(c), req.Text, req.Reference)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: ev})
}

// GetDispute returns the case with its evidence; parties only.
// GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}

	dispute, evidence, err := h.disputeService.Get(c.Context(), disputeID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	userID := middleware.GetUserID(c)
	if dispute.RaisedBy != userID && dispute.Against != userID {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a party to this dispute"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DisputeDetailResponse{
		Dispute:  dispute,
		Evidence: evidence,
	}})
}
