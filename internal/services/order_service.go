package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/apperr"
	"github.com/ZenRasta/IbisExchange-sub000/internal/config"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
)

type OrderService struct {
	pool      *pgxpool.Pool
	orderRepo *repositories.OrderRepo
	userRepo  *repositories.UserRepo
	auditRepo *repositories.AuditRepo
	cfg       *config.Config
	log       *zap.Logger
}

func NewOrderService(
	pool *pgxpool.Pool,
	orderRepo *repositories.OrderRepo,
	userRepo *repositories.UserRepo,
	auditRepo *repositories.AuditRepo,
	cfg *config.Config,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		pool:      pool,
		orderRepo: orderRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		cfg:       cfg,
		log:       log,
	}
}

type CreateOrderInput struct {
	Side           models.OrderSide
	Amount         decimal.Decimal
	Price          decimal.Decimal
	Currency       string
	PaymentMethods []string
	MinTradeAmount *decimal.Decimal
	MaxTradeAmount *decimal.Decimal
}

func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.NotFound("user")
	}
	if user.Banned {
		return nil, apperr.Unauthorized("account is banned")
	}

	if input.Side != models.OrderSideBuy && input.Side != models.OrderSideSell {
		return nil, apperr.Validationf("side must be buy or sell")
	}
	if input.Amount.LessThan(s.cfg.MinOrderAmount) {
		return nil, apperr.Validationf("amount must be at least %s USDT", s.cfg.MinOrderAmount)
	}
	if input.Price.Sign() <= 0 {
		return nil, apperr.Validationf("price must be positive")
	}
	if !models.IsSupportedCurrency(input.Currency) {
		return nil, apperr.Validationf("unsupported currency %q", input.Currency)
	}
	if len(input.PaymentMethods) == 0 {
		return nil, apperr.Validationf("at least one payment method is required")
	}
	for _, m := range input.PaymentMethods {
		if !models.IsValidPaymentMethod(input.Currency, m) {
			return nil, apperr.Validationf("payment method %q is not available for %s", m, input.Currency)
		}
	}
	if input.MinTradeAmount != nil && input.MinTradeAmount.Sign() <= 0 {
		return nil, apperr.Validationf("min trade amount must be positive")
	}
	if input.MinTradeAmount != nil && input.MinTradeAmount.GreaterThan(input.Amount) {
		return nil, apperr.Validationf("min trade amount exceeds order amount")
	}
	if input.MaxTradeAmount != nil && input.MinTradeAmount != nil &&
		input.MaxTradeAmount.LessThan(*input.MinTradeAmount) {
		return nil, apperr.Validationf("max trade amount is below min trade amount")
	}

	order := &models.Order{
		UserID:          userID,
		Side:            input.Side,
		Amount:          input.Amount,
		RemainingAmount: input.Amount,
		Price:           input.Price,
		Currency:        input.Currency,
		PaymentMethods:  input.PaymentMethods,
		MinTradeAmount:  input.MinTradeAmount,
		MaxTradeAmount:  input.MaxTradeAmount,
		Status:          models.OrderStatusActive,
		ExpiresAt:       time.Now().Add(s.cfg.StaleOrderExpiry),
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, apperr.Internal(err)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "order_created",
		EntityType:  "order",
		EntityID:    &order.ID,
		Meta: map[string]any{
			"side": order.Side, "amount": order.Amount.String(),
			"price": order.Price.String(), "currency": order.Currency,
		},
	})

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("order")
	}
	return order, nil
}

// ListOpen returns matchable orders in price-time priority.
func (s *OrderService) ListOpen(ctx context.Context, f repositories.OrderFilter) ([]models.Order, error) {
	orders, err := s.orderRepo.ListOpen(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return orders, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return orders, nil
}

// CancelOrder closes the order's remaining capacity. Trades already opened
// against it continue on their own lifecycle.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return apperr.NotFound("order")
	}
	if order.UserID != actorID {
		return apperr.Unauthorized("only the order owner can cancel it")
	}
	if !order.IsAcceptable() {
		return apperr.New(apperr.CodeOrderNotActive, "order is not open")
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, models.OrderStatusCancelled); err != nil {
		return apperr.Internal(err)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      "order_cancelled",
		EntityType:  "order",
		EntityID:    &orderID,
	})
	return nil
}

// ExpireStale is the worker sweep that closes resting orders past expiry.
func (s *OrderService) ExpireStale(ctx context.Context) (int, error) {
	ids, err := s.orderRepo.ExpireStale(ctx)
	if err != nil {
		return 0, err
	}
	for i := range ids {
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "order_expired",
			EntityType: "order",
			EntityID:   &ids[i],
		})
	}
	return len(ids), nil
}

// mapFillError translates order capacity errors into API codes.
func mapFillError(err error) error {
	switch {
	case errors.Is(err, models.ErrOrderNotActive):
		return apperr.New(apperr.CodeOrderNotActive, "order is not open")
	case errors.Is(err, models.ErrAmountExceedsRemaining),
		errors.Is(err, models.ErrAmountBelowOrderMinimum),
		errors.Is(err, models.ErrAmountAboveOrderMaximum),
		errors.Is(err, models.ErrAmountNotPositive):
		return apperr.Validationf("%s", err.Error())
	default:
		return apperr.Internal(err)
	}
}
