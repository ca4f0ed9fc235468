package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder() *Order {
	return &Order{
		Side:            OrderSideSell,
		Amount:          dec("100"),
		RemainingAmount: dec("100"),
		Price:           dec("95.50"),
		Currency:        "RUB",
		Status:          OrderStatusActive,
	}
}

func TestValidateFill(t *testing.T) {
	min := dec("10")
	max := dec("50")

	tests := []struct {
		name    string
		mutate  func(*Order)
		amount  string
		wantErr error
	}{
		{"full remaining", nil, "100", nil},
		{"partial", nil, "40", nil},
		{"exceeds remaining", nil, "150", ErrAmountExceedsRemaining},
		{"zero", nil, "0", ErrAmountNotPositive},
		{"negative", nil, "-5", ErrAmountNotPositive},
		{"cancelled order", func(o *Order) { o.Status = OrderStatusCancelled }, "40", ErrOrderNotActive},
		{"matched order", func(o *Order) { o.Status = OrderStatusMatched }, "40", ErrOrderNotActive},
		{"partially matched ok", func(o *Order) {
			o.Status = OrderStatusPartiallyMatched
			o.RemainingAmount = dec("60")
		}, "60", nil},
		{"below order minimum", func(o *Order) { o.MinTradeAmount = &min }, "5", ErrAmountBelowOrderMinimum},
		{"minimum waived for full tail", func(o *Order) {
			o.MinTradeAmount = &min
			o.RemainingAmount = dec("5")
		}, "5", nil},
		{"above order maximum", func(o *Order) { o.MaxTradeAmount = &max }, "60", ErrAmountAboveOrderMaximum},
		{"at order maximum", func(o *Order) { o.MaxTradeAmount = &max }, "50", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOrder()
			if tt.mutate != nil {
				tt.mutate(o)
			}
			err := o.ValidateFill(dec(tt.amount))
			if err != tt.wantErr {
				t.Errorf("ValidateFill(%s) = %v, want %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}

func TestResolveFillAmount(t *testing.T) {
	min := dec("10")
	max := dec("50")

	tests := []struct {
		name      string
		mutate    func(*Order)
		requested string
		want      string
		wantErr   error
	}{
		{"explicit amount passes through", nil, "40", "40", nil},
		{"zero defaults to full remaining", nil, "0", "100", nil},
		{"default on partial remainder", func(o *Order) {
			o.Status = OrderStatusPartiallyMatched
			o.RemainingAmount = dec("35")
		}, "0", "35", nil},
		{"default waives the order minimum", func(o *Order) {
			o.MinTradeAmount = &min
			o.RemainingAmount = dec("5")
		}, "0", "5", nil},
		{"default still bound by maximum", func(o *Order) { o.MaxTradeAmount = &max }, "0", "", ErrAmountAboveOrderMaximum},
		{"default on closed order", func(o *Order) { o.Status = OrderStatusCancelled }, "0", "", ErrOrderNotActive},
		{"negative rejected", nil, "-1", "", ErrAmountNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOrder()
			if tt.mutate != nil {
				tt.mutate(o)
			}
			got, err := o.ResolveFillAmount(dec(tt.requested))
			if err != tt.wantErr {
				t.Fatalf("ResolveFillAmount(%s) error = %v, want %v", tt.requested, err, tt.wantErr)
			}
			if err == nil && !got.Equal(dec(tt.want)) {
				t.Errorf("ResolveFillAmount(%s) = %s, want %s", tt.requested, got, tt.want)
			}
		})
	}
}

func TestApplyAndRestoreFill(t *testing.T) {
	o := testOrder()

	o.ApplyFill(dec("40"))
	if !o.RemainingAmount.Equal(dec("60")) {
		t.Errorf("remaining = %s, want 60", o.RemainingAmount)
	}
	if o.Status != OrderStatusPartiallyMatched {
		t.Errorf("status = %s, want partially_matched", o.Status)
	}

	o.ApplyFill(dec("60"))
	if o.RemainingAmount.Sign() != 0 {
		t.Errorf("remaining = %s, want 0", o.RemainingAmount)
	}
	if o.Status != OrderStatusMatched {
		t.Errorf("status = %s, want matched", o.Status)
	}

	// Trade expired: capacity comes back, status reopens
	o.RestoreFill(dec("60"))
	if !o.RemainingAmount.Equal(dec("60")) {
		t.Errorf("remaining after restore = %s, want 60", o.RemainingAmount)
	}
	if o.Status != OrderStatusPartiallyMatched {
		t.Errorf("status after partial restore = %s, want partially_matched", o.Status)
	}

	o.RestoreFill(dec("40"))
	if o.Status != OrderStatusActive {
		t.Errorf("status after full restore = %s, want active", o.Status)
	}
	if !o.RemainingAmount.Equal(o.Amount) {
		t.Errorf("remaining = %s, want %s", o.RemainingAmount, o.Amount)
	}
}

func TestCounterSide(t *testing.T) {
	if CounterSide(OrderSideBuy) != OrderSideSell {
		t.Error("counter side of buy must be sell")
	}
	if CounterSide(OrderSideSell) != OrderSideBuy {
		t.Error("counter side of sell must be buy")
	}
}

func TestIsValidPaymentMethod(t *testing.T) {
	tests := []struct {
		currency string
		method   string
		expected bool
	}{
		{"RUB", "sberbank", true},
		{"RUB", "sepa", false},
		{"EUR", "sepa", true},
		{"USD", "wise", true},
		{"XXX", "wise", false},
	}
	for _, tt := range tests {
		if got := IsValidPaymentMethod(tt.currency, tt.method); got != tt.expected {
			t.Errorf("IsValidPaymentMethod(%q, %q) = %v, want %v", tt.currency, tt.method, got, tt.expected)
		}
	}
}
