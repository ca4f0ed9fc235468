package escrow

import (
	"context"
	"math/big"
)

// Gateway sends escrow messages to the chain. The trade service talks to
// this interface only; the concrete implementation is either the real TON
// client or the in-process contract (local network mode). Calls carry the
// acting party's wallet address because contract authorization is
// per-sender.
type Gateway interface {
	CreateEscrow(ctx context.Context, id, buyer, seller string, expectedAmount *big.Int, fiatAmount string) error
	ConfirmFiatSent(ctx context.Context, id, buyer string) error
	ReleaseFunds(ctx context.Context, id, seller string) error
	RefundEscrow(ctx context.Context, id, actor string) error
	DisputeEscrow(ctx context.Context, id, actor string) error
	ResolveDispute(ctx context.Context, id string, releaseToBuyer bool) error
	GetEscrow(ctx context.Context, id string) (Record, error)
}

// InProcessGateway runs the contract in memory. Used when TON_NETWORK=local:
// deposits are simulated through Deposit instead of a jetton transfer, and
// emitted transfers are kept for inspection.
type InProcessGateway struct {
	contract *Contract
	arbiter  string
}

func NewInProcessGateway(contract *Contract, arbiter string) *InProcessGateway {
	return &InProcessGateway{contract: contract, arbiter: arbiter}
}

func (g *InProcessGateway) CreateEscrow(_ context.Context, id, buyer, seller string, expectedAmount *big.Int, fiatAmount string) error {
	return g.contract.Create(buyer, id, seller, expectedAmount, fiatAmount)
}

// Deposit simulates the seller's jetton transfer landing on the contract.
// Not part of Gateway: on a real network funding arrives via the indexer.
func (g *InProcessGateway) Deposit(id, seller string, amount *big.Int) error {
	return g.contract.NotifyDeposit(seller, id, amount)
}

func (g *InProcessGateway) ConfirmFiatSent(_ context.Context, id, buyer string) error {
	return g.contract.ConfirmFiatSent(buyer, id)
}

func (g *InProcessGateway) ReleaseFunds(_ context.Context, id, seller string) error {
	_, err := g.contract.ReleaseFunds(seller, id)
	return err
}

func (g *InProcessGateway) RefundEscrow(_ context.Context, id, actor string) error {
	_, err := g.contract.RefundEscrow(actor, id)
	return err
}

func (g *InProcessGateway) DisputeEscrow(_ context.Context, id, actor string) error {
	return g.contract.DisputeEscrow(actor, id)
}

func (g *InProcessGateway) ResolveDispute(_ context.Context, id string, releaseToBuyer bool) error {
	_, err := g.contract.ResolveDispute(g.arbiter, id, releaseToBuyer)
	return err
}

func (g *InProcessGateway) GetEscrow(_ context.Context, id string) (Record, error) {
	return g.contract.Get(id)
}
