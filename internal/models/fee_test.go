package models

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFeeFor(t *testing.T) {
	tests := []struct {
		amount   string
		bps      int64
		expected string
	}{
		{"50", 50, "0.25"}, // 50 USDT at 0.5%
		{"100", 50, "0.5"},
		{"100", 300, "3"},
		{"33.33", 100, "0.3333"},
		{"0.000001", 50, "0"}, // rounds away below 6 decimals
		{"1000", 0, "0"},
	}

	for _, tt := range tests {
		got := FeeFor(decimal.RequireFromString(tt.amount), tt.bps)
		if !got.Equal(decimal.RequireFromString(tt.expected)) {
			t.Errorf("FeeFor(%s, %d) = %s, want %s", tt.amount, tt.bps, got, tt.expected)
		}
	}
}

func TestEffectiveFeeBPS(t *testing.T) {
	tiers := []FeeDiscountTier{
		{MinTrades: 10, FeeBPS: 40},
		{MinTrades: 50, FeeBPS: 30},
		{MinTrades: 200, FeeBPS: 20},
	}

	tests := []struct {
		completed int
		expected  int64
	}{
		{0, 50},
		{9, 50},
		{10, 40},
		{49, 40},
		{50, 30},
		{200, 20},
		{10000, 20},
	}

	for _, tt := range tests {
		if got := EffectiveFeeBPS(50, tiers, tt.completed); got != tt.expected {
			t.Errorf("EffectiveFeeBPS(50, tiers, %d) = %d, want %d", tt.completed, got, tt.expected)
		}
	}

	// A tier above the base rate never raises it
	if got := EffectiveFeeBPS(25, tiers, 10); got != 25 {
		t.Errorf("tier must not raise the base rate, got %d", got)
	}
}

func TestComputeReputationScore(t *testing.T) {
	tests := []struct {
		name       string
		successful int
		total      int
		volume     string
		expected   float64
	}{
		{"no trades", 0, 0, "0", 0},
		{"one failed trade", 0, 1, "50", 0},
		{"first completed trade", 1, 1, "50",
			5 * (0.7 + 0.3*math.Log10(51)/4)},
		{"perfect high volume caps factor", 20, 20, "100000", 5},
		{"half success rate", 5, 10, "9999",
			0.5 * 5 * (0.7 + 0.3*math.Log10(10000)/4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeReputationScore(tt.successful, tt.total, decimal.RequireFromString(tt.volume))
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("score = %v, want %v", got, tt.expected)
			}
			if got < 0 || got > 5 {
				t.Errorf("score %v out of [0, 5]", got)
			}
		})
	}
}

func TestFiatAmountFor(t *testing.T) {
	tests := []struct {
		amount, price, expected string
	}{
		{"100", "95.50", "9550"},
		{"10.123456", "3", "30.37"}, // rounded to 2 decimals
		{"0.5", "101.999", "51"},
	}
	for _, tt := range tests {
		got := FiatAmountFor(decimal.RequireFromString(tt.amount), decimal.RequireFromString(tt.price))
		if !got.Equal(decimal.RequireFromString(tt.expected)) {
			t.Errorf("FiatAmountFor(%s, %s) = %s, want %s", tt.amount, tt.price, got, tt.expected)
		}
	}
}
