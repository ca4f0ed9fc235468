package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/http/dto"
	"github.com/ZenRasta/IbisExchange-sub000/internal/middleware"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
	"github.com/ZenRasta/IbisExchange-sub000/internal/services"
)

type OrderHandler struct {
	orderService *services.OrderService
	tradeService *services.TradeService
	log          *zap.Logger
}

func NewOrderHandler(orderService *services.OrderService, tradeService *services.TradeService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, tradeService: tradeService, log: log}
}

// CreateOrder places a resting order on the book.
// POST /orders
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return badRequest(c, "invalid amount")
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return badRequest(c, "invalid price")
	}

	input := services.CreateOrderInput{
		Side:           models.OrderSide(req.Side),
		Amount:         amount,
		Price:          price,
		Currency:       req.Currency,
		PaymentMethods: req.PaymentMethods,
	}
	if req.MinTradeAmount != nil {
		d, err := decimal.NewFromString(*req.MinTradeAmount)
		if err != nil {
			return badRequest(c, "invalid min_trade_amount")
		}
		input.MinTradeAmount = &d
	}
	if req.MaxTradeAmount != nil {
		d, err := decimal.NewFromString(*req.MaxTradeAmount)
		if err != nil {
			return badRequest(c, "invalid max_trade_amount")
		}
		input.MaxTradeAmount = &d
	}

	order, err := h.orderService.CreateOrder(c.Context(), middleware.GetUserID(c), input)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: order})
}

// ListOrders returns the open book in price-time priority. An amount
// narrows the book to orders that can still fill that much.
// GET /orders?side=sell&currency=RUB&payment_method=sbp&amount=100
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	var f repositories.OrderFilter
	if v := c.Query("side"); v != "" {
		side := models.OrderSide(v)
		f.Side = &side
	}
	if v := c.Query("currency"); v != "" {
		f.Currency = &v
	}
	if v := c.Query("payment_method"); v != "" {
		f.PaymentMethod = &v
	}
	if v := c.Query("amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.Sign() <= 0 {
			return badRequest(c, "invalid amount")
		}
		f.MinRemaining = &d
	}
	f.Limit = c.QueryInt("limit", 50)
	f.Offset = c.QueryInt("offset", 0)

	orders, err := h.orderService.ListOpen(c.Context(), f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

// MyOrders returns the caller's orders, newest first, any status.
// GET /orders/my
func (h *OrderHandler) MyOrders(c *fiber.Ctx) error {
	orders, err := h.orderService.ListUserOrders(c.Context(), middleware.GetUserID(c),
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

// GetOrder
// GET /orders/:id
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	order, err := h.orderService.GetOrder(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

// CancelOrder closes remaining capacity; trades in flight continue.
// POST /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	if err := h.orderService.CancelOrder(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// AcceptOrder matches against an order and opens a trade.
// POST /orders/:id/accept
func (h *OrderHandler) AcceptOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}

	var req dto.AcceptOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	// No amount means the full remaining amount; the service resolves it
	// from the order inside the acceptance transaction.
	amount := decimal.Zero
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			return badRequest(c, "invalid amount")
		}
	}

	trade, err := h.tradeService.AcceptOrder(c.Context(), middleware.GetUserID(c), id, amount, req.PaymentMethod)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: trade})
}
