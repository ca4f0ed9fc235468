package dto

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

// Orders

type CreateOrderRequest struct {
	Side           string   `json:"side"`   // buy / sell
	Amount         string   `json:"amount"` // USDT
	Price          string   `json:"price"`  // fiat per 1 USDT
	Currency       string   `json:"currency"`
	PaymentMethods []string `json:"payment_methods"`
	MinTradeAmount *string  `json:"min_trade_amount,omitempty"`
	MaxTradeAmount *string  `json:"max_trade_amount,omitempty"`
}

type AcceptOrderRequest struct {
	Amount        string `json:"amount,omitempty"` // USDT, within the order's limits; empty takes the full remainder
	PaymentMethod string `json:"payment_method"`
}

// Trades

type RateTradeRequest struct {
	Rating int `json:"rating"` // 1..5
}

// Disputes

type RaiseDisputeRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

type AddEvidenceRequest struct {
	Text      string  `json:"text"`
	Reference *string `json:"reference,omitempty"` // external URL (screenshot, bank statement)
}

type ResolveDisputeRequest struct {
	Action string  `json:"action"` // release_to_buyer / return_to_seller / split / no_action
	Notes  *string `json:"notes,omitempty"`
}

// Admin

type SetKYCTierRequest struct {
	Tier int `json:"tier"`
}

type SetBannedRequest struct {
	Banned bool `json:"banned"`
}
