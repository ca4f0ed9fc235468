package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/config"
	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/escrow"
	"github.com/ZenRasta/IbisExchange-sub000/internal/events"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
	"github.com/ZenRasta/IbisExchange-sub000/internal/services"
	"github.com/ZenRasta/IbisExchange-sub000/internal/ton"
)

// The worker drives everything time-based: funding timeouts, fiat
// confirmation timeouts, stale order expiry and escrow reconciliation.
// Each sweep is idempotent, so overlapping runs after a restart are safe.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	gateway, err := newGateway(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to set up escrow gateway", zap.Error(err))
	}

	// Repos
	userRepo := repositories.NewUserRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	tradeRepo := repositories.NewTradeRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	feeRepo := repositories.NewFeeRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	orderService := services.NewOrderService(pool, orderRepo, userRepo, auditRepo, cfg, log)
	tradeService := services.NewTradeService(pool, tradeRepo, orderRepo, userRepo, walletRepo, feeRepo, disputeRepo, auditRepo, gateway, publisher, cfg, log)

	log.Info("worker started")

	// Run jobs on tickers
	fundingTicker := time.NewTicker(1 * time.Minute)
	fiatTicker := time.NewTicker(2 * time.Minute)
	orderTicker := time.NewTicker(5 * time.Minute)
	reconcileTicker := time.NewTicker(30 * time.Second)
	defer fundingTicker.Stop()
	defer fiatTicker.Stop()
	defer orderTicker.Stop()
	defer reconcileTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-fundingTicker.C:
			runFundingTimeouts(ctx, tradeService, log)
		case <-fiatTicker.C:
			runFiatTimeouts(ctx, tradeService, log)
		case <-orderTicker.C:
			runOrderExpiry(ctx, orderService, log)
		case <-reconcileTicker.C:
			runReconcile(ctx, tradeService, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runFundingTimeouts(ctx context.Context, tradeService *services.TradeService, log *zap.Logger) {
	n, err := tradeService.ExpireFundingTimeouts(ctx)
	if err != nil {
		log.Error("funding timeout sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired unfunded trades", zap.Int("count", n))
	}
}

func runFiatTimeouts(ctx context.Context, tradeService *services.TradeService, log *zap.Logger) {
	n, err := tradeService.SweepFiatTimeouts(ctx)
	if err != nil {
		log.Error("fiat timeout sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("auto-disputed stalled trades", zap.Int("count", n))
	}
}

func runOrderExpiry(ctx context.Context, orderService *services.OrderService, log *zap.Logger) {
	n, err := orderService.ExpireStale(ctx)
	if err != nil {
		log.Error("order expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired stale orders", zap.Int("count", n))
	}
}

func runReconcile(ctx context.Context, tradeService *services.TradeService, log *zap.Logger) {
	if err := tradeService.ReconcileEscrows(ctx); err != nil {
		log.Error("escrow reconciliation failed", zap.Error(err))
	}
}

// newGateway selects the escrow backend: an in-process contract for local
// development, the deployed TON contract otherwise.
func newGateway(ctx context.Context, cfg *config.Config, log *zap.Logger) (escrow.Gateway, error) {
	if cfg.TONNetwork == "local" {
		contract := escrow.NewContract(cfg.ArbiterAddress, cfg.FeeCollectorAddress, cfg.PlatformFeeBPS, cfg.EscrowReleaseTimeout)
		return escrow.NewInProcessGateway(contract, cfg.ArbiterAddress), nil
	}

	api, err := ton.Connect(ctx, ton.ConnectConfig{
		Network:        cfg.TONNetwork,
		LiteServerHost: cfg.LiteServerHost,
		LiteServerPort: cfg.LiteServerPort,
		LiteServerKey:  cfg.LiteServerKey,
	}, log)
	if err != nil {
		return nil, err
	}
	return ton.NewClient(api, cfg.HotWalletSeed, cfg.EscrowContractAddress, log)
}
