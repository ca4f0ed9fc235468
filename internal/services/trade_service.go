package services

import (
	"context"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/apperr"
	"github.com/ZenRasta/IbisExchange-sub000/internal/config"
	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/escrow"
	"github.com/ZenRasta/IbisExchange-sub000/internal/events"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
)

// jettonDecimals is USDT's on-chain precision: 1 USDT = 1e6 base units.
const jettonDecimals = 6

// TradeService drives the off-chain trade record. The escrow contract is
// the authority over custody; this service sends it messages through the
// gateway and mirrors confirmed outcomes into the trades table.
type TradeService struct {
	pool        *pgxpool.Pool
	tradeRepo   *repositories.TradeRepo
	orderRepo   *repositories.OrderRepo
	userRepo    *repositories.UserRepo
	walletRepo  *repositories.WalletRepo
	feeRepo     *repositories.FeeRepo
	disputeRepo *repositories.DisputeRepo
	auditRepo   *repositories.AuditRepo
	gateway     escrow.Gateway
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewTradeService(
	pool *pgxpool.Pool,
	tradeRepo *repositories.TradeRepo,
	orderRepo *repositories.OrderRepo,
	userRepo *repositories.UserRepo,
	walletRepo *repositories.WalletRepo,
	feeRepo *repositories.FeeRepo,
	disputeRepo *repositories.DisputeRepo,
	auditRepo *repositories.AuditRepo,
	gateway escrow.Gateway,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *TradeService {
	return &TradeService{
		pool:        pool,
		tradeRepo:   tradeRepo,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		walletRepo:  walletRepo,
		feeRepo:     feeRepo,
		disputeRepo: disputeRepo,
		auditRepo:   auditRepo,
		gateway:     gateway,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// AcceptOrder opens a trade against an order. The capacity decrement, the
// trade row and the pending fee record commit as one unit of work, so two
// racing acceptances of the same remainder cannot both win. A zero amount
// takes the order's full remaining amount, resolved from the row read
// inside the transaction so the default races correctly.
func (s *TradeService) AcceptOrder(ctx context.Context, acceptorID, orderID uuid.UUID, amount decimal.Decimal, paymentMethod string) (*models.Trade, error) {
	acceptor, err := s.userRepo.GetByID(ctx, acceptorID)
	if err != nil {
		return nil, apperr.NotFound("user")
	}
	if acceptor.Banned {
		return nil, apperr.Unauthorized("account is banned")
	}

	var trade *models.Trade
	var buyerAddr, sellerAddr string

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		orderRepo := repositories.NewOrderRepo(tx)
		tradeRepo := repositories.NewTradeRepo(tx)
		feeRepo := repositories.NewFeeRepo(tx)
		walletRepo := repositories.NewWalletRepo(tx)
		userRepo := repositories.NewUserRepo(tx)

		order, err := orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return apperr.NotFound("order")
		}
		if order.UserID == acceptorID {
			return apperr.Validationf("cannot accept your own order")
		}
		fill, err := order.ResolveFillAmount(amount)
		if err != nil {
			return mapFillError(err)
		}
		if !containsString(order.PaymentMethods, paymentMethod) {
			return apperr.Validationf("payment method %q is not offered by this order", paymentMethod)
		}

		maker, err := userRepo.GetByID(ctx, order.UserID)
		if err != nil {
			return apperr.NotFound("order owner")
		}
		if maker.Banned {
			return apperr.New(apperr.CodeOrderNotActive, "order owner is banned")
		}

		// The maker of a sell order is the seller; accepting it makes the
		// acceptor the buyer. Reversed for buy orders.
		buyer, seller := acceptor, maker
		if order.Side == models.OrderSideBuy {
			buyer, seller = maker, acceptor
		}

		for _, u := range []*models.User{buyer, seller} {
			if fill.GreaterThan(s.cfg.TradeLimitFor(u.KYCTier)) {
				return apperr.New(apperr.CodeTradeLimitExceeded,
					"trade amount exceeds a party's verification tier limit")
			}
		}

		// Both sides need a proven wallet: the seller deposits from theirs,
		// the buyer receives the release to theirs.
		buyerWallet, err := walletRepo.GetActiveWallet(ctx, buyer.ID)
		if err != nil || !buyerWallet.Verified {
			return apperr.Validationf("buyer has no verified wallet connected")
		}
		sellerWallet, err := walletRepo.GetActiveWallet(ctx, seller.ID)
		if err != nil || !sellerWallet.Verified {
			return apperr.Validationf("seller has no verified wallet connected")
		}
		buyerAddr, sellerAddr = buyerWallet.AddressFriendly, sellerWallet.AddressFriendly

		applied, err := orderRepo.ApplyFill(ctx, orderID, fill)
		if err != nil {
			return apperr.Internal(err)
		}
		if !applied {
			return apperr.New(apperr.CodeOrderNotActive, "order capacity changed, retry")
		}

		// The fee rate is locked at creation from the seller's history.
		feeBPS := models.EffectiveFeeBPS(s.cfg.PlatformFeeBPS, s.cfg.FeeDiscountTiers, seller.SuccessfulTrades)

		trade = &models.Trade{
			OrderID:       orderID,
			BuyerID:       buyer.ID,
			SellerID:      seller.ID,
			Amount:        fill,
			Price:         order.Price,
			FiatAmount:    models.FiatAmountFor(fill, order.Price),
			Currency:      order.Currency,
			PaymentMethod: paymentMethod,
			EscrowID:      models.NewEscrowID(),
			FeeAmount:     models.FeeFor(fill, feeBPS),
			FeeBPS:        feeBPS,
			Status:        models.TradeStatusAwaitingEscrow,
		}
		if err := tradeRepo.Create(ctx, trade); err != nil {
			return apperr.Internal(err)
		}

		fee := &models.FeeRecord{
			TradeID: trade.ID,
			PayerID: seller.ID,
			Amount:  trade.FeeAmount,
			FeeBPS:  feeBPS,
			Status:  models.FeeStatusPending,
		}
		if err := feeRepo.Create(ctx, fee); err != nil {
			return apperr.Internal(err)
		}

		return repositories.NewAuditRepo(tx).Log(ctx, models.AuditLog{
			ActorUserID: &acceptorID,
			ActorType:   "user",
			Action:      "trade_created",
			EntityType:  "trade",
			EntityID:    &trade.ID,
			Meta: map[string]any{
				"order_id": orderID.String(), "amount": fill.String(),
				"escrow_id": trade.EscrowID, "fee_bps": feeBPS,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	// Register the escrow on-chain. If that fails the trade cannot be
	// funded, so unwind it immediately instead of letting it sit until the
	// funding timeout.
	if err := s.gateway.CreateEscrow(ctx, trade.EscrowID, buyerAddr, sellerAddr, toBaseUnits(trade.Amount), trade.FiatAmount.String()); err != nil {
		s.log.Error("escrow creation failed, cancelling trade",
			zap.String("trade_id", trade.ID.String()),
			zap.String("escrow_id", trade.EscrowID),
			zap.Error(err),
		)
		if cErr := s.closeWithoutRelease(ctx, trade, models.TradeStatusCancelled, nil, "system", "escrow_create_failed"); cErr != nil {
			s.log.Error("failed to unwind trade after escrow failure", zap.Error(cErr))
		}
		return nil, apperr.Internal(err)
	}

	s.publish(ctx, events.EventTradeCreated, trade, nil)
	return trade, nil
}

// ConfirmFunding records a verified on-chain deposit. Called by the
// indexer and the deposit webhook; safe to call more than once for the
// same escrow.
func (s *TradeService) ConfirmFunding(ctx context.Context, escrowID string, amount *big.Int) error {
	trade, err := s.tradeRepo.GetByEscrowID(ctx, escrowID)
	if err != nil {
		return apperr.NotFound("trade")
	}

	if trade.Status == models.TradeStatusEscrowLocked {
		return nil // already confirmed
	}
	if trade.Status != models.TradeStatusAwaitingEscrow {
		s.log.Warn("deposit for trade outside funding window",
			zap.String("trade_id", trade.ID.String()),
			zap.String("status", string(trade.Status)),
		)
		return nil
	}

	expected := toBaseUnits(trade.Amount)
	tolerance := toBaseUnits(s.cfg.DepositTolerance)
	minAccepted := new(big.Int).Sub(expected, tolerance)
	if amount.Cmp(minAccepted) < 0 {
		s.log.Warn("deposit below expected amount, not confirming",
			zap.String("trade_id", trade.ID.String()),
			zap.String("received", amount.String()),
			zap.String("expected", expected.String()),
		)
		return apperr.Validationf("deposit below expected amount")
	}

	flipped, err := s.tradeRepo.MarkFunded(ctx, trade.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !flipped {
		return nil // lost the race to another confirmation, fine
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "escrow_funded",
		EntityType: "trade",
		EntityID:   &trade.ID,
		Meta:       map[string]any{"escrow_id": escrowID, "deposited": amount.String()},
	})
	trade.Status = models.TradeStatusEscrowLocked
	s.publish(ctx, events.EventEscrowLocked, trade, nil)
	return nil
}

// MarkFiatSent is the buyer's claim of having paid the fiat leg.
func (s *TradeService) MarkFiatSent(ctx context.Context, tradeID, actorID uuid.UUID) error {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return apperr.NotFound("trade")
	}
	if trade.BuyerID != actorID {
		return apperr.Unauthorized("only the buyer can mark fiat as sent")
	}
	if trade.Status != models.TradeStatusEscrowLocked {
		return apperr.Validationf("trade is not awaiting fiat payment")
	}

	buyerAddr, err := s.walletAddress(ctx, trade.BuyerID)
	if err != nil {
		return err
	}
	if err := s.gateway.ConfirmFiatSent(ctx, trade.EscrowID, buyerAddr); err != nil {
		return apperr.Internal(err)
	}

	flipped, err := s.tradeRepo.MarkFiatSent(ctx, tradeID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !flipped {
		return apperr.Validationf("trade is not awaiting fiat payment")
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      "fiat_sent",
		EntityType:  "trade",
		EntityID:    &tradeID,
	})
	trade.Status = models.TradeStatusFiatSent
	s.publish(ctx, events.EventFiatSent, trade, nil)
	return nil
}

// ConfirmFiatReceived is the seller's confirmation, which triggers the
// on-chain release. The mirror moves through releasing so a crash between
// the chain send and the settlement leaves a state the reconciler can
// finish from.
func (s *TradeService) ConfirmFiatReceived(ctx context.Context, tradeID, actorID uuid.UUID) error {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return apperr.NotFound("trade")
	}
	if trade.SellerID != actorID {
		return apperr.Unauthorized("only the seller can confirm fiat receipt")
	}
	if trade.Status != models.TradeStatusFiatSent {
		return apperr.Validationf("buyer has not marked fiat as sent")
	}

	flipped, err := s.tradeRepo.UpdateStatus(ctx, tradeID, models.TradeStatusFiatSent, models.TradeStatusReleasing)
	if err != nil {
		return apperr.Internal(err)
	}
	if !flipped {
		return apperr.Validationf("trade state changed, retry")
	}
	trade.Status = models.TradeStatusReleasing
	s.publish(ctx, events.EventFiatConfirmed, trade, nil)

	sellerAddr, err := s.walletAddress(ctx, trade.SellerID)
	if err != nil {
		return err
	}
	if err := s.gateway.ReleaseFunds(ctx, trade.EscrowID, sellerAddr); err != nil {
		// Stay in releasing: the reconciler retries against chain state.
		s.log.Error("release send failed, trade left in releasing",
			zap.String("trade_id", tradeID.String()),
			zap.Error(err),
		)
		return apperr.Internal(err)
	}

	return s.finalizeRelease(ctx, trade, &actorID, "user")
}

// finalizeRelease settles a released trade: completed status, fee
// collection and reputation for both parties, one transaction.
func (s *TradeService) finalizeRelease(ctx context.Context, trade *models.Trade, actorID *uuid.UUID, actorType string) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tradeRepo := repositories.NewTradeRepo(tx)
		feeRepo := repositories.NewFeeRepo(tx)
		userRepo := repositories.NewUserRepo(tx)

		flipped, err := tradeRepo.MarkCompleted(ctx, trade.ID)
		if err != nil {
			return err
		}
		if !flipped {
			return nil // already settled elsewhere
		}

		if _, err := feeRepo.Settle(ctx, trade.ID); err != nil {
			return err
		}
		if err := userRepo.RecordTradeOutcome(ctx, trade.BuyerID, true, trade.Amount); err != nil {
			return err
		}
		if err := userRepo.RecordTradeOutcome(ctx, trade.SellerID, true, trade.Amount); err != nil {
			return err
		}

		return repositories.NewAuditRepo(tx).Log(ctx, models.AuditLog{
			ActorUserID: actorID,
			ActorType:   actorType,
			Action:      "trade_completed",
			EntityType:  "trade",
			EntityID:    &trade.ID,
			Meta:        map[string]any{"fee_amount": trade.FeeAmount.String()},
		})
	})
	if err != nil {
		return apperr.Internal(err)
	}

	trade.Status = models.TradeStatusCompleted
	s.publish(ctx, events.EventTradeCompleted, trade, nil)
	return nil
}

// CancelTrade aborts a trade the seller never funded. Either party may
// cancel while the trade awaits escrow.
func (s *TradeService) CancelTrade(ctx context.Context, tradeID, actorID uuid.UUID) error {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return apperr.NotFound("trade")
	}
	if trade.BuyerID != actorID && trade.SellerID != actorID {
		return apperr.Unauthorized("not a party to this trade")
	}
	if trade.Status != models.TradeStatusAwaitingEscrow {
		return apperr.Validationf("only unfunded trades can be cancelled")
	}

	if err := s.closeWithoutRelease(ctx, trade, models.TradeStatusCancelled, &actorID, "user", "trade_cancelled"); err != nil {
		return err
	}

	// Tear down the contract record. Best effort: a CREATED escrow holds
	// no funds, and a leftover record cannot be funded once the trade is
	// cancelled here.
	if addr, aErr := s.walletAddress(ctx, actorID); aErr == nil {
		if gErr := s.gateway.RefundEscrow(ctx, trade.EscrowID, addr); gErr != nil {
			s.log.Warn("escrow teardown failed", zap.String("escrow_id", trade.EscrowID), zap.Error(gErr))
		}
	}

	s.publish(ctx, events.EventTradeCancelled, trade, nil)
	return nil
}

// ExpireFundingTimeouts closes trades whose seller never deposited within
// the funding window. Worker sweep.
func (s *TradeService) ExpireFundingTimeouts(ctx context.Context) (int, error) {
	trades, err := s.tradeRepo.ListFundingTimedOut(ctx, int(s.cfg.FundingTimeout.Seconds()))
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range trades {
		trade := &trades[i]
		if err := s.closeWithoutRelease(ctx, trade, models.TradeStatusExpired, nil, "system", "funding_timeout"); err != nil {
			s.log.Error("failed to expire trade", zap.String("trade_id", trade.ID.String()), zap.Error(err))
			continue
		}
		expired++

		// Tear down the CREATED contract record so a late deposit has
		// nowhere to land. Best effort, same as CancelTrade; the seller
		// may cancel an unfunded escrow.
		if addr, aErr := s.walletAddress(ctx, trade.SellerID); aErr == nil {
			if gErr := s.gateway.RefundEscrow(ctx, trade.EscrowID, addr); gErr != nil {
				s.log.Warn("escrow teardown failed", zap.String("escrow_id", trade.EscrowID), zap.Error(gErr))
			}
		}

		s.publish(ctx, events.EventEscrowTimeout, trade, nil)
	}
	return expired, nil
}

// SweepFiatTimeouts auto-disputes trades where the buyer marked fiat sent
// but the seller went silent past the confirmation window. Funds stay
// frozen for the arbiter instead of auto-releasing on an unverifiable
// fiat claim.
func (s *TradeService) SweepFiatTimeouts(ctx context.Context) (int, error) {
	trades, err := s.tradeRepo.ListFiatConfirmTimedOut(ctx, int(s.cfg.FiatConfirmTimeout.Seconds()))
	if err != nil {
		return 0, err
	}

	disputed := 0
	for i := range trades {
		trade := &trades[i]

		buyerAddr, aErr := s.walletAddress(ctx, trade.BuyerID)
		if aErr != nil {
			s.log.Error("no buyer wallet for auto-dispute", zap.String("trade_id", trade.ID.String()))
			continue
		}
		if gErr := s.gateway.DisputeEscrow(ctx, trade.EscrowID, buyerAddr); gErr != nil {
			s.log.Error("on-chain dispute failed", zap.String("trade_id", trade.ID.String()), zap.Error(gErr))
			continue
		}

		err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			flipped, err := repositories.NewTradeRepo(tx).SetDispute(ctx, trade.ID, models.DisputeReasonSellerTimeout)
			if err != nil || !flipped {
				return err
			}
			desc := "seller did not confirm fiat receipt within the window"
			if err := repositories.NewDisputeRepo(tx).Create(ctx, &models.Dispute{
				TradeID:     trade.ID,
				RaisedBy:    trade.BuyerID,
				Against:     trade.SellerID,
				Reason:      models.DisputeReasonSellerTimeout,
				Description: desc,
				Status:      models.DisputeStatusOpen,
			}); err != nil {
				return err
			}
			return repositories.NewAuditRepo(tx).Log(ctx, models.AuditLog{
				ActorType:  "system",
				Action:     "trade_auto_disputed",
				EntityType: "trade",
				EntityID:   &trade.ID,
				Meta:       map[string]any{"reason": models.DisputeReasonSellerTimeout},
			})
		})
		if err != nil {
			s.log.Error("failed to record auto-dispute", zap.String("trade_id", trade.ID.String()), zap.Error(err))
			continue
		}
		disputed++
		trade.Status = models.TradeStatusDisputed
		s.publish(ctx, events.EventFiatTimeout, trade, nil)
		s.publish(ctx, events.EventTradeDisputed, trade, map[string]any{"reason": models.DisputeReasonSellerTimeout})
	}
	return disputed, nil
}

// reconcileAction is what the reconciler must do for one trade given the
// live contract state.
type reconcileAction int

const (
	reconcileNone reconcileAction = iota
	reconcileFinalize       // release landed on-chain, mirror settlement missing
	reconcileResendRelease  // mirror says releasing but the send never landed
	reconcileConfirmFunding // deposit on chain, mirror missed the notification
	reconcileFlagDispute    // contract frozen, mirror not marked disputed
	reconcileWarnRefunded   // refunded on-chain while the mirror is active
)

// reconcileActionFor compares the mirror status with the contract state.
// The chain is the authority: the mirror always moves toward it.
func reconcileActionFor(status models.TradeStatus, state escrow.State) reconcileAction {
	switch {
	case status == models.TradeStatusReleasing && state == escrow.StateCompleted:
		return reconcileFinalize
	case status == models.TradeStatusReleasing && state == escrow.StateFiatSent:
		return reconcileResendRelease
	case status == models.TradeStatusAwaitingEscrow && state == escrow.StateFunded:
		return reconcileConfirmFunding
	case status != models.TradeStatusDisputed && state == escrow.StateDisputed:
		return reconcileFlagDispute
	case models.EscrowActiveTradeStatus(status) && state == escrow.StateRefunded:
		return reconcileWarnRefunded
	}
	return reconcileNone
}

// ReconcileEscrows cross-checks non-terminal trades against the contract.
func (s *TradeService) ReconcileEscrows(ctx context.Context) error {
	trades, err := s.tradeRepo.ListNonTerminal(ctx, 100)
	if err != nil {
		return err
	}

	for i := range trades {
		trade := &trades[i]
		rec, err := s.gateway.GetEscrow(ctx, trade.EscrowID)
		if err != nil {
			continue // chain unreachable or escrow not yet created
		}

		switch reconcileActionFor(trade.Status, rec.State) {
		case reconcileFinalize:
			// Crash after the release send: finish settlement.
			if err := s.finalizeRelease(ctx, trade, nil, "system"); err != nil {
				s.log.Error("reconcile settlement failed", zap.String("trade_id", trade.ID.String()), zap.Error(err))
			}

		case reconcileResendRelease:
			// The release send failed or was lost before reaching the
			// contract; the seller already confirmed, so send again.
			sellerAddr, aErr := s.walletAddress(ctx, trade.SellerID)
			if aErr != nil {
				s.log.Error("no seller wallet for release retry", zap.String("trade_id", trade.ID.String()))
				continue
			}
			if err := s.gateway.ReleaseFunds(ctx, trade.EscrowID, sellerAddr); err != nil {
				s.log.Error("release retry failed", zap.String("trade_id", trade.ID.String()), zap.Error(err))
				continue
			}
			if err := s.finalizeRelease(ctx, trade, nil, "system"); err != nil {
				s.log.Error("reconcile settlement failed", zap.String("trade_id", trade.ID.String()), zap.Error(err))
			}

		case reconcileConfirmFunding:
			// Missed deposit notification: confirm from chain state.
			if err := s.ConfirmFunding(ctx, trade.EscrowID, rec.DepositedAmount); err != nil {
				s.log.Error("reconcile funding failed", zap.String("trade_id", trade.ID.String()), zap.Error(err))
			}

		case reconcileFlagDispute:
			if _, err := s.tradeRepo.SetDispute(ctx, trade.ID, models.DisputeReasonOther); err != nil {
				s.log.Error("reconcile dispute flag failed", zap.String("trade_id", trade.ID.String()), zap.Error(err))
			}

		case reconcileWarnRefunded:
			s.log.Warn("escrow refunded on-chain while trade active, needs review",
				zap.String("trade_id", trade.ID.String()),
				zap.String("status", string(trade.Status)),
			)
		}
	}
	return nil
}

func (s *TradeService) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("trade")
	}
	return trade, nil
}

func (s *TradeService) ListTrades(ctx context.Context, f repositories.TradeFilter) ([]models.Trade, error) {
	trades, err := s.tradeRepo.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return trades, nil
}

// RateCounterparty records a 1-5 rating once the trade reached a terminal
// settled state.
func (s *TradeService) RateCounterparty(ctx context.Context, tradeID, actorID uuid.UUID, rating int) error {
	if rating < 1 || rating > 5 {
		return apperr.Validationf("rating must be between 1 and 5")
	}
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return apperr.NotFound("trade")
	}
	if trade.BuyerID != actorID && trade.SellerID != actorID {
		return apperr.Unauthorized("not a party to this trade")
	}
	if !models.IsTerminalTradeStatus(trade.Status) {
		return apperr.Validationf("trade is not finished")
	}

	byBuyer := trade.BuyerID == actorID
	if byBuyer && trade.SellerRating != nil || !byBuyer && trade.BuyerRating != nil {
		return apperr.Validationf("rating already submitted")
	}
	if err := s.tradeRepo.SetRating(ctx, tradeID, byBuyer, rating); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *TradeService) GetTradeEvents(ctx context.Context, tradeID uuid.UUID) ([]models.AuditLog, error) {
	return s.auditRepo.GetByEntity(ctx, "trade", tradeID, 100, 0)
}

// GetEscrowState reads the live contract state for a trade's escrow.
// Parties use this to check that a deposit landed before trusting the
// off-chain mirror.
func (s *TradeService) GetEscrowState(ctx context.Context, tradeID, actorID uuid.UUID) (*escrow.Record, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, apperr.NotFound("trade")
	}
	if trade.BuyerID != actorID && trade.SellerID != actorID {
		return nil, apperr.Unauthorized("not a party to this trade")
	}
	rec, err := s.gateway.GetEscrow(ctx, trade.EscrowID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &rec, nil
}

// SimulateDeposit funds a trade's escrow on the in-process contract and
// confirms it through the regular funding path. Local network mode only;
// on a real network deposits arrive through the indexer.
func (s *TradeService) SimulateDeposit(ctx context.Context, tradeID, actorID uuid.UUID) error {
	gw, ok := s.gateway.(*escrow.InProcessGateway)
	if !ok {
		return apperr.Validationf("deposits can only be simulated on the local network")
	}

	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return apperr.NotFound("trade")
	}
	if trade.SellerID != actorID {
		return apperr.Unauthorized("only the seller deposits")
	}

	sellerAddr, err := s.walletAddress(ctx, trade.SellerID)
	if err != nil {
		return err
	}
	amount := toBaseUnits(trade.Amount)
	if err := gw.Deposit(trade.EscrowID, sellerAddr, amount); err != nil {
		return apperr.Internal(err)
	}
	return s.ConfirmFunding(ctx, trade.EscrowID, amount)
}

// closeWithoutRelease ends an unfunded trade: status flip, order capacity
// restore and fee void in one transaction.
func (s *TradeService) closeWithoutRelease(ctx context.Context, trade *models.Trade, to models.TradeStatus, actorID *uuid.UUID, actorType, action string) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tradeRepo := repositories.NewTradeRepo(tx)

		flipped, err := tradeRepo.UpdateStatus(ctx, trade.ID, models.TradeStatusAwaitingEscrow, to)
		if err != nil {
			return err
		}
		if !flipped {
			return apperr.Validationf("trade state changed, retry")
		}
		if err := repositories.NewOrderRepo(tx).RestoreFill(ctx, trade.OrderID, trade.Amount); err != nil {
			return err
		}
		if err := repositories.NewFeeRepo(tx).Void(ctx, trade.ID); err != nil {
			return err
		}
		return repositories.NewAuditRepo(tx).Log(ctx, models.AuditLog{
			ActorUserID: actorID,
			ActorType:   actorType,
			Action:      action,
			EntityType:  "trade",
			EntityID:    &trade.ID,
		})
	})
	if err != nil {
		if _, ok := err.(*apperr.Error); ok {
			return err
		}
		return apperr.Internal(err)
	}
	trade.Status = to
	return nil
}

func (s *TradeService) walletAddress(ctx context.Context, userID uuid.UUID) (string, error) {
	w, err := s.walletRepo.GetActiveWallet(ctx, userID)
	if err != nil {
		return "", apperr.Validationf("no verified wallet connected")
	}
	return w.AddressFriendly, nil
}

func (s *TradeService) publish(ctx context.Context, eventType string, trade *models.Trade, extra map[string]any) {
	_ = s.publisher.Publish(ctx, events.StreamTrades, events.Event{
		Type:          eventType,
		TradeID:       trade.ID.String(),
		BuyerID:       trade.BuyerID.String(),
		SellerID:      trade.SellerID.String(),
		Amount:        trade.Amount.String(),
		FiatAmount:    trade.FiatAmount.String(),
		PaymentMethod: trade.PaymentMethod,
		Extra:         extra,
	})
}

// toBaseUnits converts a USDT decimal amount to jetton base units.
func toBaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(jettonDecimals).BigInt()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
