package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/config"
	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/escrow"
	"github.com/ZenRasta/IbisExchange-sub000/internal/events"
	apphttp "github.com/ZenRasta/IbisExchange-sub000/internal/http"
	"github.com/ZenRasta/IbisExchange-sub000/internal/http/handlers"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
	"github.com/ZenRasta/IbisExchange-sub000/internal/services"
	"github.com/ZenRasta/IbisExchange-sub000/internal/ton"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Escrow gateway
	gateway, err := newGateway(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to set up escrow gateway", zap.Error(err))
	}

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	tradeRepo := repositories.NewTradeRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	feeRepo := repositories.NewFeeRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	orderService := services.NewOrderService(pool, orderRepo, userRepo, auditRepo, cfg, log)
	tradeService := services.NewTradeService(pool, tradeRepo, orderRepo, userRepo, walletRepo, feeRepo, disputeRepo, auditRepo, gateway, publisher, cfg, log)
	disputeService := services.NewDisputeService(pool, disputeRepo, tradeRepo, userRepo, walletRepo, auditRepo, gateway, publisher, cfg, log)
	walletService := services.NewWalletService(walletRepo, auditRepo, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	userHandler := handlers.NewUserHandler(userRepo, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	orderHandler := handlers.NewOrderHandler(orderService, tradeService, log)
	tradeHandler := handlers.NewTradeHandler(tradeService, log)
	disputeHandler := handlers.NewDisputeHandler(disputeService, log)
	adminHandler := handlers.NewAdminHandler(disputeService, userRepo, feeRepo, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, walletHandler, orderHandler, tradeHandler, disputeHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
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
