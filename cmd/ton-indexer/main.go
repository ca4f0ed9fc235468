package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	tonapi "github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"

	appton "github.com/ZenRasta/IbisExchange-sub000/internal/ton"

	"github.com/ZenRasta/IbisExchange-sub000/internal/config"
	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/events"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
	"github.com/ZenRasta/IbisExchange-sub000/internal/services"
)

const (
	redisCursorLT   = "ton-indexer:cursor:lt"
	redisCursorHash = "ton-indexer:cursor:hash"
	redisProcessed  = "ton-indexer:tx:"
	processedTTL    = 7 * 24 * time.Hour
	pollInterval    = 5 * time.Second
	txBatchSize     = 100
)

// The indexer watches the escrow contract account for incoming USDT
// jetton deposits. A TEP-74 transfer_notification whose forward comment
// carries an escrow id confirms the seller's deposit; the trade mirror is
// advanced through the same ConfirmFunding path the reconciler uses.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TONNetwork == "local" {
		log.Fatal("indexer requires a real TON network; local mode confirms deposits in-process")
	}
	if cfg.EscrowContractAddress == "" {
		log.Fatal("ESCROW_CONTRACT_ADDRESS is required")
	}

	escrowAddr, err := address.ParseAddr(cfg.EscrowContractAddress)
	if err != nil {
		log.Fatal("invalid ESCROW_CONTRACT_ADDRESS", zap.String("addr", cfg.EscrowContractAddress), zap.Error(err))
	}

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

	api, err := appton.Connect(ctx, appton.ConnectConfig{
		Network:        cfg.TONNetwork,
		LiteServerHost: cfg.LiteServerHost,
		LiteServerPort: cfg.LiteServerPort,
		LiteServerKey:  cfg.LiteServerKey,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	gateway, err := appton.NewClient(api, cfg.HotWalletSeed, cfg.EscrowContractAddress, log)
	if err != nil {
		log.Fatal("failed to set up escrow gateway", zap.Error(err))
	}

	// The indexer shares the trade service so deposit confirmation is one
	// code path everywhere.
	userRepo := repositories.NewUserRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	tradeRepo := repositories.NewTradeRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	feeRepo := repositories.NewFeeRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	tradeService := services.NewTradeService(pool, tradeRepo, orderRepo, userRepo, walletRepo, feeRepo, disputeRepo, auditRepo, gateway, publisher, cfg, log)

	log.Info("TON indexer started",
		zap.String("escrow_contract", escrowAddr.String()),
		zap.String("network", cfg.TONNetwork),
	)

	initCursor(ctx, api, escrowAddr, rdb, log)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := pollAndProcess(ctx, api, escrowAddr, tradeService, rdb, log); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down TON indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// initCursor sets the initial cursor position on first run.
// On first run, it stores the current account LastTxLT so that only
// NEW transactions (arriving after startup) are processed.
func initCursor(ctx context.Context, api tonapi.APIClientWrapped, addr *address.Address, rdb *redis.Client, log *zap.Logger) {
	existing, _ := rdb.Get(ctx, redisCursorLT).Result()
	if existing != "" {
		log.Info("resuming from saved cursor", zap.String("lt", existing))
		return
	}

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		log.Warn("failed to get master block for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		log.Warn("failed to get account for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		log.Info("escrow contract not active yet, starting from LT=0")
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	saveCursor(ctx, rdb, account.LastTxLT, account.LastTxHash)
	log.Info("cursor initialized at current account state (skipping historical transactions)",
		zap.Uint64("lt", account.LastTxLT),
		zap.String("hash", hex.EncodeToString(account.LastTxHash)),
	)
}

func loadCursorLT(ctx context.Context, rdb *redis.Client) uint64 {
	val, err := rdb.Get(ctx, redisCursorLT).Result()
	if err != nil || val == "" {
		return 0
	}
	lt, _ := strconv.ParseUint(val, 10, 64)
	return lt
}

func saveCursor(ctx context.Context, rdb *redis.Client, lt uint64, hash []byte) {
	rdb.Set(ctx, redisCursorLT, strconv.FormatUint(lt, 10), 0)
	rdb.Set(ctx, redisCursorHash, hex.EncodeToString(hash), 0)
}

// pollAndProcess runs a single poll cycle:
// 1. Get the contract's latest state
// 2. Fetch all transactions newer than the cursor
// 3. Process incoming jetton deposits
// 4. Update the cursor
func pollAndProcess(
	ctx context.Context,
	api tonapi.APIClientWrapped,
	addr *address.Address,
	tradeService *services.TradeService,
	rdb *redis.Client,
	log *zap.Logger,
) error {
	cursorLT := loadCursorLT(ctx, rdb)

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return fmt.Errorf("get master block: %w", err)
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		return nil
	}

	if account.LastTxLT <= cursorLT {
		return nil
	}

	newTxs, err := fetchNewTransactions(ctx, api, addr, account, cursorLT)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}

	if len(newTxs) > 0 {
		log.Info("found new transactions", zap.Int("count", len(newTxs)))
		for _, tx := range newTxs {
			processIncomingTx(ctx, tx, tradeService, rdb, log)
		}
	}

	saveCursor(ctx, rdb, account.LastTxLT, account.LastTxHash)
	return nil
}

// fetchNewTransactions retrieves all transactions with LT > cursorLT.
// ListTransactions returns results oldest-first; we paginate backwards
// until we reach the cursor, then return in chronological order.
func fetchNewTransactions(
	ctx context.Context,
	api tonapi.APIClientWrapped,
	addr *address.Address,
	account *tlb.Account,
	cursorLT uint64,
) ([]*tlb.Transaction, error) {
	var allTxs []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := api.ListTransactions(ctx, addr, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			allTxs = append(allTxs, tx)
		}

		if reachedCursor || len(txs) < txBatchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(allTxs, func(i, j int) bool {
		return allTxs[i].LT < allTxs[j].LT
	})

	return allTxs, nil
}

// processIncomingTx handles a single incoming message on the contract:
// decodes a jetton transfer_notification, reads the escrow id from the
// forward comment and confirms the deposit against the trade mirror.
func processIncomingTx(
	ctx context.Context,
	tx *tlb.Transaction,
	tradeService *services.TradeService,
	rdb *redis.Client,
	log *zap.Logger,
) {
	if tx.IO.In == nil {
		return
	}

	inMsg, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || inMsg == nil {
		return
	}

	if inMsg.Bounced {
		return
	}
	if inMsg.Body == nil {
		return
	}

	deposit, err := appton.ParseTransferNotification(inMsg.Body)
	if err != nil {
		// Contract control messages and plain TON transfers land here too.
		return
	}
	if deposit.EscrowID == "" {
		log.Debug("jetton deposit without escrow id, skipping",
			zap.Uint64("lt", tx.LT),
			zap.String("from", deposit.Sender.String()),
			zap.String("amount", deposit.Amount.String()),
		)
		return
	}

	// Idempotency: skip if already processed
	txKey := fmt.Sprintf("%s%d", redisProcessed, tx.LT)
	if rdb.Exists(ctx, txKey).Val() > 0 {
		return
	}

	log.Info("incoming deposit detected",
		zap.Uint64("lt", tx.LT),
		zap.String("from", deposit.Sender.String()),
		zap.String("amount", deposit.Amount.String()),
		zap.String("escrow_id", deposit.EscrowID),
	)

	if err := tradeService.ConfirmFunding(ctx, deposit.EscrowID, deposit.Amount); err != nil {
		// The cursor still advances past this tx. A short deposit is
		// completed by a later top-up transfer (its own tx, own LT), and
		// a transiently failed confirmation is recovered by the worker's
		// escrow reconciliation, which reads contract state directly.
		log.Warn("deposit not confirmed",
			zap.String("escrow_id", deposit.EscrowID),
			zap.String("amount", deposit.Amount.String()),
			zap.Error(err),
		)
		return
	}

	rdb.Set(ctx, txKey, "funded:"+deposit.EscrowID, processedTTL)

	log.Info("deposit processed — escrow funded",
		zap.String("escrow_id", deposit.EscrowID),
		zap.Uint64("tx_lt", tx.LT),
		zap.String("amount", deposit.Amount.String()),
	)
}
