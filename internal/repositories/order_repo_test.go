package repositories

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
)

func TestBuildListOpenQuery(t *testing.T) {
	side := models.OrderSideSell
	currency := "RUB"
	amount := decimal.RequireFromString("25")

	t.Run("amount filter compares remaining capacity", func(t *testing.T) {
		query, args := buildListOpenQuery(OrderFilter{
			Side:         &side,
			MinRemaining: &amount,
		})
		if !strings.Contains(query, "remaining_amount >= $2") {
			t.Errorf("query missing remaining_amount filter:\n%s", query)
		}
		// side, min remaining, limit, offset
		if len(args) != 4 {
			t.Fatalf("args = %d, want 4", len(args))
		}
		got, ok := args[1].(decimal.Decimal)
		if !ok || !got.Equal(amount) {
			t.Errorf("args[1] = %v, want %s", args[1], amount)
		}
	})

	t.Run("no amount filter without a requested amount", func(t *testing.T) {
		query, _ := buildListOpenQuery(OrderFilter{Currency: &currency})
		if strings.Contains(query, "remaining_amount >=") {
			t.Errorf("unexpected remaining_amount filter:\n%s", query)
		}
	})

	t.Run("placeholders stay sequential with all filters", func(t *testing.T) {
		method := "sberbank"
		query, args := buildListOpenQuery(OrderFilter{
			Side:          &side,
			Currency:      &currency,
			PaymentMethod: &method,
			MinRemaining:  &amount,
			Limit:         10,
		})
		for _, ph := range []string{"side = $1", "currency = $2", "$3 = ANY(payment_methods)", "remaining_amount >= $4", "LIMIT $5 OFFSET $6"} {
			if !strings.Contains(query, ph) {
				t.Errorf("query missing %q:\n%s", ph, query)
			}
		}
		if len(args) != 6 {
			t.Errorf("args = %d, want 6", len(args))
		}
	})

	t.Run("buy side orders by best price first", func(t *testing.T) {
		buy := models.OrderSideBuy
		query, _ := buildListOpenQuery(OrderFilter{Side: &buy})
		if !strings.Contains(query, "ORDER BY price DESC, created_at ASC") {
			t.Errorf("buy side not ordered highest price first:\n%s", query)
		}
	})
}
