package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID               uuid.UUID       `json:"id"`
	TelegramUserID   int64           `json:"telegram_user_id"`
	Username         *string         `json:"username,omitempty"`
	FirstName        *string         `json:"first_name,omitempty"`
	LastName         *string         `json:"last_name,omitempty"`
	KYCTier          int             `json:"kyc_tier"`
	Banned           bool            `json:"banned"`
	TotalTrades      int             `json:"total_trades"`
	SuccessfulTrades int             `json:"successful_trades"`
	TotalVolume      decimal.Decimal `json:"total_volume"` // USDT, cumulative
	ReputationScore  float64         `json:"reputation_score"`
	CreatedAt        time.Time       `json:"created_at"`
	LastActiveAt     time.Time       `json:"last_active_at"`
}

// ComputeReputationScore recomputes the composite trust score:
//
//	score = (successful/total) × 5 × (0.7 + 0.3 × min(1, log10(volume+1)/4))
//
// clamped to [0, 5]. A user with no trades scores 0.
func ComputeReputationScore(successfulTrades, totalTrades int, totalVolume decimal.Decimal) float64 {
	if totalTrades <= 0 {
		return 0
	}
	ratio := float64(successfulTrades) / float64(totalTrades)
	vol, _ := totalVolume.Float64()
	if vol < 0 {
		vol = 0
	}
	volumeFactor := math.Log10(vol+1) / 4
	if volumeFactor > 1 {
		volumeFactor = 1
	}
	score := ratio * 5 * (0.7 + 0.3*volumeFactor)
	if score < 0 {
		return 0
	}
	if score > 5 {
		return 5
	}
	return score
}
