// Package escrow models the on-chain escrow contract: one record per trade,
// advanced only by authorized messages. The contract is the sole authority
// over custody; the off-chain trade record mirrors it and never overrides it.
package escrow

import (
	"errors"
	"math/big"
	"sync"
	"time"
)

type State string

const (
	StateCreated   State = "CREATED"
	StateFunded    State = "FUNDED"
	StateFiatSent  State = "FIAT_SENT"
	StateCompleted State = "COMPLETED"
	StateRefunded  State = "REFUNDED"
	StateDisputed  State = "DISPUTED"
)

var (
	ErrAlreadyExists     = errors.New("escrow id already exists")
	ErrNotFound          = errors.New("escrow not found")
	ErrUnauthorized      = errors.New("sender is not authorized for this message")
	ErrInvalidState      = errors.New("message not valid in current state")
	ErrUnderfunded       = errors.New("deposit is below the expected amount")
	ErrTimeoutNotElapsed = errors.New("release timeout has not elapsed")
)

// Record is a single escrow. The buyer is the fiat payer who receives the
// stablecoin on release; the seller is the depositor.
type Record struct {
	ID              string
	Buyer           string
	Seller          string
	ExpectedAmount  *big.Int // jetton base units
	DepositedAmount *big.Int
	FiatAmount      string // audit only, not used in custody math
	State           State
	CreatedAt       time.Time
	FiatSentAt      time.Time // zero until ConfirmFiatSent
}

// Transfer is an outgoing token movement emitted by a terminal message.
type Transfer struct {
	To      string
	Amount  *big.Int
	Purpose string // release / fee / refund
}

// Contract holds all escrow records. Authorization is checked per message
// by sender identity; there are no sessions.
type Contract struct {
	mu             sync.Mutex
	arbiter        string
	feeCollector   string
	feeBPS         int64
	releaseTimeout time.Duration
	escrows        map[string]*Record
	now            func() time.Time
}

func NewContract(arbiter, feeCollector string, feeBPS int64, releaseTimeout time.Duration) *Contract {
	return &Contract{
		arbiter:        arbiter,
		feeCollector:   feeCollector,
		feeBPS:         feeBPS,
		releaseTimeout: releaseTimeout,
		escrows:        make(map[string]*Record),
		now:            time.Now,
	}
}

// SetClock overrides the contract clock. Test hook.
func (c *Contract) SetClock(now func() time.Time) { c.now = now }

// Create registers a new escrow. Only the buyer sends this message;
// duplicate ids are rejected, which is the collision backstop for the
// uncoordinated escrow-id generator.
func (c *Contract) Create(sender, id, seller string, expectedAmount *big.Int, fiatAmount string) error {
	if sender == "" || sender == seller {
		return ErrUnauthorized
	}
	if expectedAmount == nil || expectedAmount.Sign() <= 0 {
		return ErrUnderfunded
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.escrows[id]; ok {
		return ErrAlreadyExists
	}
	c.escrows[id] = &Record{
		ID:              id,
		Buyer:           sender,
		Seller:          seller,
		ExpectedAmount:  new(big.Int).Set(expectedAmount),
		DepositedAmount: new(big.Int),
		FiatAmount:      fiatAmount,
		State:           StateCreated,
		CreatedAt:       c.now(),
	}
	return nil
}

// NotifyDeposit handles the jetton transfer notification. Only the
// registered seller's deposit counts, it must cover the expected amount in
// one transfer, and double funding is rejected.
func (c *Contract) NotifyDeposit(sender, id string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.escrows[id]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateCreated {
		return ErrInvalidState
	}
	if sender != e.Seller {
		return ErrUnauthorized
	}
	if amount == nil || amount.Cmp(e.ExpectedAmount) < 0 {
		return ErrUnderfunded
	}

	e.DepositedAmount = new(big.Int).Set(amount)
	e.State = StateFunded
	return nil
}

// ConfirmFiatSent records the buyer's claim that the fiat leg was paid.
// The timestamp anchors the unilateral-refund timeout.
func (c *Contract) ConfirmFiatSent(sender, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.escrows[id]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateFunded {
		return ErrInvalidState
	}
	if sender != e.Buyer {
		return ErrUnauthorized
	}

	e.State = StateFiatSent
	e.FiatSentAt = c.now()
	return nil
}

// ReleaseFunds pays out the escrow: net amount to the buyer, fee to the
// collector. Only the seller, only after fiat was sent. A second release
// fails with ErrInvalidState — there is no double payout.
func (c *Contract) ReleaseFunds(sender, id string) ([]Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.State != StateFiatSent {
		return nil, ErrInvalidState
	}
	if sender != e.Seller {
		return nil, ErrUnauthorized
	}

	transfers := c.payout(e)
	e.State = StateCompleted
	return transfers, nil
}

// RefundEscrow returns the deposit to the seller.
//   - CREATED: either party may cancel; nothing was deposited.
//   - FUNDED: the seller may always back out of their own deposit.
//   - FUNDED/FIAT_SENT: the buyer may refund unilaterally once the release
//     timeout has elapsed since creation (or since fiat-sent), so a vanished
//     counterparty cannot lock funds forever.
func (c *Contract) RefundEscrow(sender, id string) ([]Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}

	switch e.State {
	case StateCreated:
		if sender != e.Buyer && sender != e.Seller {
			return nil, ErrUnauthorized
		}
		e.State = StateRefunded
		return nil, nil

	case StateFunded, StateFiatSent:
		switch sender {
		case e.Seller:
			if e.State == StateFiatSent {
				// After the buyer claims payment only the timeout path
				// or arbitration can move funds.
				return nil, ErrInvalidState
			}
		case e.Buyer:
			anchor := e.CreatedAt
			if e.State == StateFiatSent {
				anchor = e.FiatSentAt
			}
			if c.now().Sub(anchor) < c.releaseTimeout {
				return nil, ErrTimeoutNotElapsed
			}
		default:
			return nil, ErrUnauthorized
		}

		transfers := []Transfer{{To: e.Seller, Amount: new(big.Int).Set(e.DepositedAmount), Purpose: "refund"}}
		e.State = StateRefunded
		return transfers, nil

	default:
		return nil, ErrInvalidState
	}
}

// DisputeEscrow freezes the escrow for arbitration. Either party, only
// while funds are locked.
func (c *Contract) DisputeEscrow(sender, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.escrows[id]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateFunded && e.State != StateFiatSent {
		return ErrInvalidState
	}
	if sender != e.Buyer && sender != e.Seller {
		return ErrUnauthorized
	}

	e.State = StateDisputed
	return nil
}

// ResolveDispute is arbiter-only. releaseToBuyer pays out like a normal
// release (fee split applies); otherwise the full deposit returns to the
// seller.
func (c *Contract) ResolveDispute(sender, id string, releaseToBuyer bool) ([]Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.State != StateDisputed {
		return nil, ErrInvalidState
	}
	if sender != c.arbiter {
		return nil, ErrUnauthorized
	}

	if releaseToBuyer {
		transfers := c.payout(e)
		e.State = StateCompleted
		return transfers, nil
	}

	transfers := []Transfer{{To: e.Seller, Amount: new(big.Int).Set(e.DepositedAmount), Purpose: "refund"}}
	e.State = StateRefunded
	return transfers, nil
}

// Get returns a copy of the escrow record.
func (c *Contract) Get(id string) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.escrows[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec := *e
	rec.ExpectedAmount = new(big.Int).Set(e.ExpectedAmount)
	rec.DepositedAmount = new(big.Int).Set(e.DepositedAmount)
	return rec, nil
}

// payout splits the deposit into net-to-buyer and fee-to-collector.
// fee = deposited × feeBPS / 10000, truncated to whole base units.
func (c *Contract) payout(e *Record) []Transfer {
	fee := new(big.Int).Mul(e.DepositedAmount, big.NewInt(c.feeBPS))
	fee.Div(fee, big.NewInt(10000))
	net := new(big.Int).Sub(e.DepositedAmount, fee)

	transfers := []Transfer{{To: e.Buyer, Amount: net, Purpose: "release"}}
	if fee.Sign() > 0 {
		transfers = append(transfers, Transfer{To: c.feeCollector, Amount: fee, Purpose: "fee"})
	}
	return transfers
}
