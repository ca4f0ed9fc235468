package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FeeStatus string

const (
	FeeStatusPending FeeStatus = "pending"
	FeeStatusSettled FeeStatus = "settled"
	FeeStatusVoided  FeeStatus = "voided"
)

// FeeRecord is created as pending when the trade is created and settled
// exactly once when funds are released (normal completion or a dispute
// resolution that releases).
type FeeRecord struct {
	ID        uuid.UUID       `json:"id"`
	TradeID   uuid.UUID       `json:"trade_id"`
	PayerID   uuid.UUID       `json:"payer_id"` // the seller: fee is cut from the escrowed amount
	Amount    decimal.Decimal `json:"amount"`
	FeeBPS    int64           `json:"fee_bps"`
	Status    FeeStatus       `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	SettledAt *time.Time      `json:"settled_at,omitempty"`
}

// FeeDiscountTier lowers the fee rate once a user has completed enough
// trades. Tiers are evaluated at trade creation; the resulting rate is
// locked into the trade.
type FeeDiscountTier struct {
	MinTrades int
	FeeBPS    int64
}

// EffectiveFeeBPS picks the best (lowest) rate the user qualifies for.
// Tiers must be sorted by MinTrades ascending.
func EffectiveFeeBPS(baseBPS int64, tiers []FeeDiscountTier, completedTrades int) int64 {
	bps := baseBPS
	for _, t := range tiers {
		if completedTrades >= t.MinTrades && t.FeeBPS < bps {
			bps = t.FeeBPS
		}
	}
	return bps
}

// FeeFor computes the platform fee: amount × bps / 10000, rounded to the
// stablecoin's 6 decimals.
func FeeFor(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(10000)).Round(6)
}
