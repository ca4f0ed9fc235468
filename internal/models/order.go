package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderStatus string

// Order statuses
const (
	OrderStatusActive           OrderStatus = "active"
	OrderStatusPartiallyMatched OrderStatus = "partially_matched"
	OrderStatusMatched          OrderStatus = "matched"
	OrderStatusCancelled        OrderStatus = "cancelled"
	OrderStatusExpired          OrderStatus = "expired"
)

var (
	ErrOrderNotActive          = errors.New("order is not active")
	ErrAmountExceedsRemaining  = errors.New("amount exceeds remaining order amount")
	ErrAmountBelowOrderMinimum = errors.New("amount is below the order's minimum trade amount")
	ErrAmountAboveOrderMaximum = errors.New("amount is above the order's maximum trade amount")
	ErrAmountNotPositive       = errors.New("amount must be positive")
)

type Order struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Side            OrderSide        `json:"side"`
	Amount          decimal.Decimal  `json:"amount"`           // USDT
	RemainingAmount decimal.Decimal  `json:"remaining_amount"` // invariant: 0 <= remaining <= amount
	Price           decimal.Decimal  `json:"price"`            // fiat per 1 USDT
	Currency        string           `json:"currency"`
	PaymentMethods  []string         `json:"payment_methods"`
	MinTradeAmount  *decimal.Decimal `json:"min_trade_amount,omitempty"`
	MaxTradeAmount  *decimal.Decimal `json:"max_trade_amount,omitempty"`
	Status          OrderStatus      `json:"status"`
	ExpiresAt       time.Time        `json:"expires_at"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsAcceptable reports whether the order can still be matched against.
func (o *Order) IsAcceptable() bool {
	return o.Status == OrderStatusActive || o.Status == OrderStatusPartiallyMatched
}

// ValidateFill checks that amount can be taken from the order's remaining
// amount, honoring the order's own per-trade limits.
func (o *Order) ValidateFill(amount decimal.Decimal) error {
	if !o.IsAcceptable() {
		return ErrOrderNotActive
	}
	if amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	if amount.GreaterThan(o.RemainingAmount) {
		return ErrAmountExceedsRemaining
	}
	// Minimum does not apply when the fill takes the full remainder,
	// otherwise small tails could never be matched.
	if o.MinTradeAmount != nil && amount.LessThan(*o.MinTradeAmount) && !amount.Equal(o.RemainingAmount) {
		return ErrAmountBelowOrderMinimum
	}
	if o.MaxTradeAmount != nil && amount.GreaterThan(*o.MaxTradeAmount) {
		return ErrAmountAboveOrderMaximum
	}
	return nil
}

// ResolveFillAmount turns a requested fill into the effective one: a zero
// request means "take everything left". The result is validated against
// the order's own limits.
func (o *Order) ResolveFillAmount(requested decimal.Decimal) (decimal.Decimal, error) {
	amount := requested
	if amount.IsZero() {
		amount = o.RemainingAmount
	}
	if err := o.ValidateFill(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

// ApplyFill decrements the remaining amount and flips the status.
// Callers must ValidateFill first; the same arithmetic runs as a guarded
// UPDATE in the store so two racing fills cannot both succeed.
func (o *Order) ApplyFill(amount decimal.Decimal) {
	o.RemainingAmount = o.RemainingAmount.Sub(amount)
	if o.RemainingAmount.Sign() == 0 {
		o.Status = OrderStatusMatched
	} else {
		o.Status = OrderStatusPartiallyMatched
	}
}

// RestoreFill returns capacity to the order after a trade ends without
// release (cancel, funding timeout, refund resolution).
func (o *Order) RestoreFill(amount decimal.Decimal) {
	o.RemainingAmount = o.RemainingAmount.Add(amount)
	if o.Status == OrderStatusMatched || o.Status == OrderStatusPartiallyMatched {
		if o.RemainingAmount.Equal(o.Amount) {
			o.Status = OrderStatusActive
		} else {
			o.Status = OrderStatusPartiallyMatched
		}
	}
}

// CounterSide returns the side an acceptor is looking for.
func CounterSide(side OrderSide) OrderSide {
	if side == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}
