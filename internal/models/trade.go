package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TradeStatus string

// Trade statuses — the off-chain mirror of the escrow contract lifecycle.
const (
	TradeStatusAwaitingEscrow  TradeStatus = "awaiting_escrow"
	TradeStatusEscrowLocked    TradeStatus = "escrow_locked"
	TradeStatusFiatSent        TradeStatus = "fiat_sent"
	TradeStatusReleasing       TradeStatus = "releasing"
	TradeStatusCompleted       TradeStatus = "completed"
	TradeStatusDisputed        TradeStatus = "disputed"
	TradeStatusResolvedRelease TradeStatus = "resolved_release"
	TradeStatusResolvedRefund  TradeStatus = "resolved_refund"
	TradeStatusCancelled       TradeStatus = "cancelled"
	TradeStatusExpired         TradeStatus = "expired"
)

// Valid state transitions: from -> []to. Strictly forward except into
// disputed, which every escrow-active state can reach.
var ValidTradeTransitions = map[TradeStatus][]TradeStatus{
	TradeStatusAwaitingEscrow:  {TradeStatusEscrowLocked, TradeStatusCancelled, TradeStatusExpired},
	TradeStatusEscrowLocked:    {TradeStatusFiatSent, TradeStatusDisputed},
	TradeStatusFiatSent:        {TradeStatusReleasing, TradeStatusDisputed},
	TradeStatusReleasing:       {TradeStatusCompleted, TradeStatusDisputed},
	TradeStatusDisputed:        {TradeStatusResolvedRelease, TradeStatusResolvedRefund},
	TradeStatusCompleted:       {},
	TradeStatusResolvedRelease: {},
	TradeStatusResolvedRefund:  {},
	TradeStatusCancelled:       {},
	TradeStatusExpired:         {},
}

func IsValidTradeTransition(from, to TradeStatus) bool {
	allowed, ok := ValidTradeTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalTradeStatus(s TradeStatus) bool {
	allowed, ok := ValidTradeTransitions[s]
	return ok && len(allowed) == 0
}

// EscrowActiveTradeStatus reports whether funds are locked in the contract,
// i.e. a dispute may be raised.
func EscrowActiveTradeStatus(s TradeStatus) bool {
	return s == TradeStatusEscrowLocked || s == TradeStatusFiatSent || s == TradeStatusReleasing
}

// RestoresOrderCapacity reports whether entering this terminal status must
// return the trade amount to the originating order.
func RestoresOrderCapacity(s TradeStatus) bool {
	return s == TradeStatusCancelled || s == TradeStatusExpired || s == TradeStatusResolvedRefund
}

type Trade struct {
	ID                uuid.UUID       `json:"id"`
	OrderID           uuid.UUID       `json:"order_id"`
	BuyerID           uuid.UUID       `json:"buyer_id"`
	SellerID          uuid.UUID       `json:"seller_id"`
	Amount            decimal.Decimal `json:"amount"` // USDT
	Price             decimal.Decimal `json:"price"`
	FiatAmount        decimal.Decimal `json:"fiat_amount"` // rounded to 2 decimals
	Currency          string          `json:"currency"`
	PaymentMethod     string          `json:"payment_method"`
	EscrowID          string          `json:"escrow_id"`
	FeeAmount         decimal.Decimal `json:"fee_amount"`
	FeeBPS            int64           `json:"fee_bps"`
	Status            TradeStatus     `json:"status"`
	DisputeReason     *string         `json:"dispute_reason,omitempty"`
	DisputeResolution *string         `json:"dispute_resolution,omitempty"`
	BuyerRating       *int            `json:"buyer_rating,omitempty"`
	SellerRating      *int            `json:"seller_rating,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	FundedAt          *time.Time      `json:"funded_at,omitempty"`
	FiatSentAt        *time.Time      `json:"fiat_sent_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// FiatAmountFor computes the fiat leg of a trade, rounded to 2 decimals.
func FiatAmountFor(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price).Round(2)
}

// NewEscrowID generates a globally-unique escrow identifier without
// coordination. 128 bits of entropy; the contract rejects duplicate ids
// as the collision backstop.
func NewEscrowID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failure means the host is unusable
	}
	return hex.EncodeToString(b[:])
}
