package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/config"
	"github.com/ZenRasta/IbisExchange-sub000/internal/http/handlers"
	"github.com/ZenRasta/IbisExchange-sub000/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	walletHandler *handlers.WalletHandler,
	orderHandler *handlers.OrderHandler,
	tradeHandler *handlers.TradeHandler,
	disputeHandler *handlers.DisputeHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/telegram", authHandler.TelegramAuth)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/currencies", metaHandler.GetCurrencies)
	api.Get("/meta/payment-methods", metaHandler.GetPaymentMethods)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)
	protected.Get("/users/:id/profile", userHandler.GetProfile)

	// Wallet (TON Connect + Proof)
	protected.Post("/me/wallet/proof-payload", walletHandler.GeneratePayload)
	protected.Post("/me/wallet/connect", walletHandler.ConnectWallet)
	protected.Delete("/me/wallet", walletHandler.DisconnectWallet)
	protected.Get("/me/wallet", walletHandler.GetWallet)

	// Order book
	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/my", orderHandler.MyOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Post("/orders/:id/cancel", orderHandler.CancelOrder)
	protected.Post("/orders/:id/accept", orderHandler.AcceptOrder)

	// Trades
	protected.Get("/trades", tradeHandler.ListTrades)
	protected.Get("/trades/:id", tradeHandler.GetTrade)
	protected.Get("/trades/:id/escrow", tradeHandler.GetEscrow)
	protected.Post("/trades/:id/fiat-sent", tradeHandler.MarkFiatSent)
	protected.Post("/trades/:id/confirm-received", tradeHandler.ConfirmReceived)
	protected.Post("/trades/:id/cancel", tradeHandler.CancelTrade)
	protected.Post("/trades/:id/rate", tradeHandler.RateTrade)
	protected.Get("/trades/:id/events", tradeHandler.GetTradeEvents)
	protected.Post("/trades/:id/dispute", disputeHandler.RaiseDispute)

	// Local network mode: the seller's jetton deposit is simulated against
	// the in-process contract instead of arriving through the indexer.
	if cfg.TONNetwork == "local" {
		protected.Post("/dev/trades/:id/deposit", tradeHandler.SimulateDeposit)
	}

	// Disputes
	protected.Get("/disputes/:id", disputeHandler.GetDispute)
	protected.Post("/disputes/:id/evidence", disputeHandler.AddEvidence)

	// Arbitration desk
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Get("/disputes", adminHandler.ListDisputes)
	admin.Get("/disputes/:id", adminHandler.GetDispute)
	admin.Post("/disputes/:id/review", adminHandler.ReviewDispute)
	admin.Post("/disputes/:id/resolve", adminHandler.ResolveDispute)
	admin.Put("/users/:id/kyc-tier", adminHandler.SetKYCTier)
	admin.Put("/users/:id/banned", adminHandler.SetBanned)
	admin.Get("/fees/total", adminHandler.FeeTotals)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
