package ton

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	tonapi "github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/escrow"
)

// Escrow contract message opcodes. The platform hot wallet relays user
// intents to the contract; the acting party's address travels in the body.
const (
	opCreateEscrow   = 0x1f04e4ca
	opConfirmFiat    = 0x2a4f1c3d
	opReleaseFunds   = 0x3d5e2b4f
	opRefundEscrow   = 0x4e6f3c5a
	opDisputeEscrow  = 0x5f704d6b
	opResolveDispute = 0x60815e7c
)

// attachedTON covers gas for one escrow message.
var attachedTON = tlb.MustFromTON("0.05")

// ConnectConfig is the subset of app config the lite client needs.
type ConnectConfig struct {
	Network        string // mainnet / testnet
	LiteServerHost string
	LiteServerPort int
	LiteServerKey  string
}

// Connect establishes a lite client connection. With explicit lite server
// settings it connects there; otherwise it auto-discovers from the global
// network config.
func Connect(ctx context.Context, cfg ConnectConfig, log *zap.Logger) (tonapi.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.Network) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.Network))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := tonapi.ProofCheckPolicyFast
	if strings.ToLower(cfg.Network) == "mainnet" {
		proofPolicy = tonapi.ProofCheckPolicySecure
	}

	return tonapi.NewAPIClient(client, proofPolicy).WithRetry(), nil
}

// Client implements escrow.Gateway against the deployed contract. Sends go
// through a circuit breaker so a flapping lite server fails fast instead of
// stalling every trade mutation behind chain timeouts.
type Client struct {
	api        tonapi.APIClientWrapped
	w          *wallet.Wallet
	escrowAddr *address.Address
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

func NewClient(api tonapi.APIClientWrapped, hotWalletSeed, escrowContractAddr string, log *zap.Logger) (*Client, error) {
	w, err := wallet.FromSeed(api, strings.Fields(hotWalletSeed), wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("init hot wallet: %w", err)
	}

	escrowAddr, err := address.ParseAddr(escrowContractAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid escrow contract address: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ton-escrow",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{api: api, w: w, escrowAddr: escrowAddr, breaker: breaker, log: log}, nil
}

func (c *Client) CreateEscrow(ctx context.Context, id, buyer, seller string, expectedAmount *big.Int, fiatAmount string) error {
	idBits, err := escrowIDBits(id)
	if err != nil {
		return err
	}
	buyerAddr, err := address.ParseAddr(buyer)
	if err != nil {
		return fmt.Errorf("invalid buyer address: %w", err)
	}
	sellerAddr, err := address.ParseAddr(seller)
	if err != nil {
		return fmt.Errorf("invalid seller address: %w", err)
	}

	body := cell.BeginCell().
		MustStoreUInt(opCreateEscrow, 32).
		MustStoreUInt(0, 64).
		MustStoreSlice(idBits, uint(len(idBits)*8)).
		MustStoreAddr(buyerAddr).
		MustStoreAddr(sellerAddr).
		MustStoreBigCoins(expectedAmount).
		MustStoreRef(cell.BeginCell().MustStoreStringSnake(fiatAmount).EndCell()).
		EndCell()

	return c.send(ctx, body)
}

func (c *Client) ConfirmFiatSent(ctx context.Context, id, buyer string) error {
	return c.sendActorMessage(ctx, opConfirmFiat, id, buyer)
}

func (c *Client) ReleaseFunds(ctx context.Context, id, seller string) error {
	return c.sendActorMessage(ctx, opReleaseFunds, id, seller)
}

func (c *Client) RefundEscrow(ctx context.Context, id, actor string) error {
	return c.sendActorMessage(ctx, opRefundEscrow, id, actor)
}

func (c *Client) DisputeEscrow(ctx context.Context, id, actor string) error {
	return c.sendActorMessage(ctx, opDisputeEscrow, id, actor)
}

func (c *Client) ResolveDispute(ctx context.Context, id string, releaseToBuyer bool) error {
	idBits, err := escrowIDBits(id)
	if err != nil {
		return err
	}

	body := cell.BeginCell().
		MustStoreUInt(opResolveDispute, 32).
		MustStoreUInt(0, 64).
		MustStoreSlice(idBits, uint(len(idBits)*8)).
		MustStoreBoolBit(releaseToBuyer).
		EndCell()

	return c.send(ctx, body)
}

// GetEscrow reads the contract state via get method. Addresses are not
// returned; the off-chain record already knows the parties and the
// reconciler only needs state and amounts.
func (c *Client) GetEscrow(ctx context.Context, id string) (escrow.Record, error) {
	idBits, err := escrowIDBits(id)
	if err != nil {
		return escrow.Record{}, err
	}

	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return escrow.Record{}, fmt.Errorf("get master block: %w", err)
	}

	res, err := c.api.RunGetMethod(ctx, block, c.escrowAddr, "get_escrow_state", new(big.Int).SetBytes(idBits))
	if err != nil {
		return escrow.Record{}, fmt.Errorf("run get_escrow_state: %w", err)
	}

	state, err := res.Int(0)
	if err != nil {
		return escrow.Record{}, err
	}
	expected, err := res.Int(1)
	if err != nil {
		return escrow.Record{}, err
	}
	deposited, err := res.Int(2)
	if err != nil {
		return escrow.Record{}, err
	}

	return escrow.Record{
		ID:              id,
		ExpectedAmount:  expected,
		DepositedAmount: deposited,
		State:           stateFromCode(state.Int64()),
	}, nil
}

func (c *Client) sendActorMessage(ctx context.Context, op uint64, id, actor string) error {
	idBits, err := escrowIDBits(id)
	if err != nil {
		return err
	}
	actorAddr, err := address.ParseAddr(actor)
	if err != nil {
		return fmt.Errorf("invalid actor address: %w", err)
	}

	body := cell.BeginCell().
		MustStoreUInt(op, 32).
		MustStoreUInt(0, 64).
		MustStoreSlice(idBits, uint(len(idBits)*8)).
		MustStoreAddr(actorAddr).
		EndCell()

	return c.send(ctx, body)
}

func (c *Client) send(ctx context.Context, body *cell.Cell) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.w.Send(ctx, wallet.SimpleMessage(c.escrowAddr, attachedTON, body), true)
	})
	return err
}

func escrowIDBits(id string) ([]byte, error) {
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) != 16 {
		return nil, fmt.Errorf("invalid escrow id %q", id)
	}
	return raw, nil
}

func stateFromCode(code int64) escrow.State {
	switch code {
	case 0:
		return escrow.StateCreated
	case 1:
		return escrow.StateFunded
	case 2:
		return escrow.StateFiatSent
	case 3:
		return escrow.StateCompleted
	case 4:
		return escrow.StateRefunded
	case 5:
		return escrow.StateDisputed
	default:
		return escrow.State(fmt.Sprintf("UNKNOWN_%d", code))
	}
}
