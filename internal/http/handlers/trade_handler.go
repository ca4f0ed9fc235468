package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/http/dto"
	"github.com/ZenRasta/IbisExchange-sub000/internal/middleware"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
	"github.com/ZenRasta/IbisExchange-sub000/internal/services"
)

type TradeHandler struct {
	tradeService *services.TradeService
	log          *zap.Logger
}

func NewTradeHandler(tradeService *services.TradeService, log *zap.Logger) *TradeHandler {
	return &TradeHandler{tradeService: tradeService, log: log}
}

// ListTrades returns the caller's trades.
// GET /trades?status=fiat_sent
func (h *TradeHandler) ListTrades(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	f := repositories.TradeFilter{
		UserID: &userID,
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if v := c.Query("status"); v != "" {
		status := models.TradeStatus(v)
		f.Status = &status
	}

	trades, err := h.tradeService.ListTrades(c.Context(), f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trades})
}

// GetTrade returns one trade; parties only.
// GET /trades/:id
func (h *TradeHandler) GetTrade(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	trade, err := h.tradeService.GetTrade(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	userID := middleware.GetUserID(c)
	if trade.BuyerID != userID && trade.SellerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a party to this trade"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

// GetEscrow reads the live contract state behind a trade.
// GET /trades/:id/escrow
func (h *TradeHandler) GetEscrow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	rec, err := h.tradeService.GetEscrowState(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"escrow_id":        rec.ID,
		"state":            rec.State,
		"expected_amount":  rec.ExpectedAmount.String(),
		"deposited_amount": rec.DepositedAmount.String(),
	}})
}

// MarkFiatSent is the buyer's declaration that the fiat leg was paid.
// POST /trades/:id/fiat-sent
func (h *TradeHandler) MarkFiatSent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	if err := h.tradeService.MarkFiatSent(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ConfirmReceived is the seller's confirmation that fiat arrived; it
// triggers the on-chain release.
// POST /trades/:id/confirm-received
func (h *TradeHandler) ConfirmReceived(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	if err := h.tradeService.ConfirmFiatReceived(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// CancelTrade aborts a trade that was never funded.
// POST /trades/:id/cancel
func (h *TradeHandler) CancelTrade(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	if err := h.tradeService.CancelTrade(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// RateTrade records a counterparty rating after settlement.
// POST /trades/:id/rate
func (h *TradeHandler) RateTrade(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	var req dto.RateTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.tradeService.RateCounterparty(c.Context(), id, middleware.GetUserID(c), req.Rating); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// SimulateDeposit funds the escrow on the in-process contract. Registered
// only when the local network is configured.
// POST /dev/trades/:id/deposit
func (h *TradeHandler) SimulateDeposit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	if err := h.tradeService.SimulateDeposit(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GetTradeEvents returns the audit trail for a trade; parties only.
// GET /trades/:id/events
func (h *TradeHandler) GetTradeEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid trade id")
	}
	trade, err := h.tradeService.GetTrade(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	userID := middleware.GetUserID(c)
	if trade.BuyerID != userID && trade.SellerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a party to this trade"})
	}
	logs, err := h.tradeService.GetTradeEvents(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
