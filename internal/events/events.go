package events

import "context"

// Lifecycle event types consumed by the external notifier (chat bot, UI).
// Delivery is at-most-once best-effort; the trade record stays the system
// of record.
const (
	EventTradeCreated   = "TRADE_CREATED"
	EventEscrowLocked   = "ESCROW_LOCKED"
	EventFiatSent       = "FIAT_SENT"
	EventFiatConfirmed  = "FIAT_CONFIRMED"
	EventTradeCompleted = "TRADE_COMPLETED"
	EventTradeDisputed  = "TRADE_DISPUTED"
	EventTradeResolved  = "TRADE_RESOLVED"
	EventTradeCancelled = "TRADE_CANCELLED"
	EventEscrowTimeout  = "ESCROW_TIMEOUT"
	EventFiatTimeout    = "FIAT_TIMEOUT"
)

// StreamTrades is the redis channel lifecycle events are published to.
const StreamTrades = "events:trade"

type Event struct {
	Type          string         `json:"type"`
	TradeID       string         `json:"trade_id"`
	BuyerID       string         `json:"buyer_id"`
	SellerID      string         `json:"seller_id"`
	Amount        string         `json:"amount"`
	FiatAmount    string         `json:"fiat_amount"`
	PaymentMethod string         `json:"payment_method,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
