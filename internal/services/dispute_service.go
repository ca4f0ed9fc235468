package services

import (
	"context"

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

const (
	maxEvidencePerParty = 10

	// A user losing this many disputes inside the window is banned.
	banDisputeThreshold  = 3
	banDisputeWindowDays = 90
)

type DisputeService struct {
	pool        *pgxpool.Pool
	disputeRepo *repositories.DisputeRepo
	tradeRepo   *repositories.TradeRepo
	userRepo    *repositories.UserRepo
	walletRepo  *repositories.WalletRepo
	auditRepo   *repositories.AuditRepo
	gateway     escrow.Gateway
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewDisputeService(
	pool *pgxpool.Pool,
	disputeRepo *repositories.DisputeRepo,
	tradeRepo *repositories.TradeRepo,
	userRepo *repositories.UserRepo,
	walletRepo *repositories.WalletRepo,
	auditRepo *repositories.AuditRepo,
	gateway escrow.Gateway,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *DisputeService {
	return &DisputeService{
		pool:        pool,
		disputeRepo: disputeRepo,
		tradeRepo:   tradeRepo,
		userRepo:    userRepo,
		walletRepo:  walletRepo,
		auditRepo:   auditRepo,
		gateway:     gateway,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// Raise freezes a trade for arbitration. Only a party, only while funds
// are locked in the contract. The on-chain freeze goes first: a dispute
// that failed to freeze the contract protects nobody. A trade left
// disputed by a dismissed case can be re-raised; the contract is already
// frozen then, so only a new case is opened.
func (s *DisputeService) Raise(ctx context.Context, tradeID, actorID uuid.UUID, reason, description string) (*models.Dispute, error) {
	if !models.IsValidDisputeReason(reason) {
		return nil, apperr.Validationf("unknown dispute reason %q", reason)
	}
	if description == "" {
		return nil, apperr.Validationf("description is required")
	}

	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, apperr.NotFound("trade")
	}
	if trade.BuyerID != actorID && trade.SellerID != actorID {
		return nil, apperr.Unauthorized("not a party to this trade")
	}
	alreadyDisputed := trade.Status == models.TradeStatusDisputed
	if !alreadyDisputed && !models.EscrowActiveTradeStatus(trade.Status) {
		return nil, apperr.Validationf("trade has no locked escrow to dispute")
	}
	if alreadyDisputed {
		if _, err := s.disputeRepo.GetOpenByTradeID(ctx, tradeID); err == nil {
			return nil, apperr.Validationf("a dispute is already open for this trade")
		}
	}

	if !alreadyDisputed {
		actorWallet, err := s.walletRepo.GetActiveWallet(ctx, actorID)
		if err != nil {
			return nil, apperr.Validationf("no verified wallet connected")
		}
		if err := s.gateway.DisputeEscrow(ctx, trade.EscrowID, actorWallet.AddressFriendly); err != nil {
			return nil, apperr.Internal(err)
		}
	}

	against := trade.SellerID
	if actorID == trade.SellerID {
		against = trade.BuyerID
	}
	dispute := &models.Dispute{
		TradeID:     tradeID,
		RaisedBy:    actorID,
		Against:     against,
		Reason:      reason,
		Description: description,
		Status:      models.DisputeStatusOpen,
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if !alreadyDisputed {
			flipped, err := repositories.NewTradeRepo(tx).SetDispute(ctx, tradeID, reason)
			if err != nil {
				return err
			}
			if !flipped {
				return apperr.Validationf("trade state changed, retry")
			}
		}
		if err := repositories.NewDisputeRepo(tx).Create(ctx, dispute); err != nil {
			return err
		}
		return repositories.NewAuditRepo(tx).Log(ctx, models.AuditLog{
			ActorUserID: &actorID,
			ActorType:   "user",
			Action:      "dispute_raised",
			EntityType:  "dispute",
			EntityID:    &dispute.ID,
			Meta:        map[string]any{"trade_id": tradeID.String(), "reason": reason},
		})
	})
	if err != nil {
		if _, ok := err.(*apperr.Error); ok {
			return nil, err
		}
		return nil, apperr.Internal(err)
	}

	trade.Status = models.TradeStatusDisputed
	s.publishTrade(ctx, events.EventTradeDisputed, trade, map[string]any{"reason": reason})
	return dispute, nil
}

// AddEvidence appends a submission while the dispute is open. Capped per
// party so one side cannot bury the arbiter.
func (s *DisputeService) AddEvidence(ctx context.Context, disputeID, actorID uuid.UUID, text string, reference *string) (*models.DisputeEvidence, error) {
	if text == "" {
		return nil, apperr.Validationf("evidence text is required")
	}

	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, apperr.NotFound("dispute")
	}
	if dispute.RaisedBy != actorID && dispute.Against != actorID {
		return nil, apperr.Unauthorized("not a party to this dispute")
	}
	if !dispute.Status.AcceptsEvidence() {
		return nil, apperr.Validationf("dispute is closed")
	}

	n, err := s.disputeRepo.CountEvidence(ctx, disputeID, actorID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if n >= maxEvidencePerParty {
		return nil, apperr.Validationf("evidence limit reached")
	}

	evidence := &models.DisputeEvidence{
		DisputeID:   disputeID,
		SubmittedBy: actorID,
		Text:        text,
		Reference:   reference,
	}
	if err := s.disputeRepo.AddEvidence(ctx, evidence); err != nil {
		return nil, apperr.Internal(err)
	}
	return evidence, nil
}

func (s *DisputeService) Get(ctx context.Context, id uuid.UUID) (*models.Dispute, []models.DisputeEvidence, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, apperr.NotFound("dispute")
	}
	evidence, err := s.disputeRepo.ListEvidence(ctx, id)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	return dispute, evidence, nil
}

func (s *DisputeService) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	disputes, err := s.disputeRepo.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return disputes, nil
}

func (s *DisputeService) MarkUnderReview(ctx context.Context, disputeID, adminID uuid.UUID) error {
	if err := s.disputeRepo.MarkUnderReview(ctx, disputeID); err != nil {
		return apperr.Internal(err)
	}
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &adminID,
		ActorType:   "admin",
		Action:      "dispute_under_review",
		EntityType:  "dispute",
		EntityID:    &disputeID,
	})
	return nil
}

// Resolve is the arbiter's verdict. For a verdict that moves funds the
// on-chain resolution goes first, then the mirror settles: trade terminal
// status, fee, reputation for both parties, and the repeat-offender ban.
//
// Action mapping lives in models.VerdictFor: release_to_buyer and split
// pay the buyer out (the contract has no partial payout, split is kept in
// the dispute record only), return_to_seller refunds the deposit, and
// no_action dismisses the case without touching the chain or the trade —
// the deposit stays frozen and the trade stays disputed until someone
// re-raises or an arbiter returns with a real verdict.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, action string, notes *string) error {
	verdict, ok := models.VerdictFor(action)
	if !ok {
		return apperr.Validationf("unknown resolution action %q", action)
	}

	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return apperr.NotFound("dispute")
	}
	if !dispute.Status.AcceptsEvidence() {
		return apperr.Validationf("dispute is already resolved")
	}
	trade, err := s.tradeRepo.GetByID(ctx, dispute.TradeID)
	if err != nil {
		return apperr.NotFound("trade")
	}
	if trade.Status != models.TradeStatusDisputed {
		return apperr.Validationf("trade is not disputed")
	}

	if verdict.MovesFunds {
		if err := s.gateway.ResolveDispute(ctx, trade.EscrowID, verdict.ReleaseToBuyer); err != nil {
			return apperr.Internal(err)
		}
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		disputeRepo := repositories.NewDisputeRepo(tx)

		if verdict.MovesFunds {
			tradeRepo := repositories.NewTradeRepo(tx)
			feeRepo := repositories.NewFeeRepo(tx)
			userRepo := repositories.NewUserRepo(tx)

			flipped, err := tradeRepo.SetResolution(ctx, trade.ID, verdict.TradeStatus, action)
			if err != nil {
				return err
			}
			if !flipped {
				return apperr.Validationf("trade state changed, retry")
			}

			if verdict.ReleaseToBuyer {
				if _, err := feeRepo.Settle(ctx, trade.ID); err != nil {
					return err
				}
			} else {
				if err := feeRepo.Void(ctx, trade.ID); err != nil {
					return err
				}
				if err := repositories.NewOrderRepo(tx).RestoreFill(ctx, trade.OrderID, trade.Amount); err != nil {
					return err
				}
			}

			// Reputation: the winner records a successful trade (with
			// volume only when value actually moved), the loser a failed
			// one. A dismissal leaves both untouched.
			winner, loser := trade.SellerID, trade.BuyerID
			volume := decimal.Zero
			if verdict.ReleaseToBuyer {
				winner, loser = trade.BuyerID, trade.SellerID
				volume = trade.Amount
			}
			if err := userRepo.RecordTradeOutcome(ctx, winner, true, volume); err != nil {
				return err
			}
			if err := userRepo.RecordTradeOutcome(ctx, loser, false, decimal.Zero); err != nil {
				return err
			}
		}

		if _, err := disputeRepo.Resolve(ctx, disputeID, verdict.DisputeStatus, verdict.Outcome, action, adminID, notes); err != nil {
			return err
		}

		return repositories.NewAuditRepo(tx).Log(ctx, models.AuditLog{
			ActorUserID: &adminID,
			ActorType:   "admin",
			Action:      "dispute_resolved",
			EntityType:  "dispute",
			EntityID:    &disputeID,
			Meta:        map[string]any{"trade_id": trade.ID.String(), "action": action, "outcome": verdict.Outcome},
		})
	})
	if err != nil {
		if _, ok := err.(*apperr.Error); ok {
			return err
		}
		return apperr.Internal(err)
	}

	if verdict.MovesFunds {
		loser := trade.SellerID
		if !verdict.ReleaseToBuyer {
			loser = trade.BuyerID
		}
		s.checkRepeatOffender(ctx, loser)
		trade.Status = verdict.TradeStatus
	}
	s.publishTrade(ctx, events.EventTradeResolved, trade, map[string]any{"action": action, "outcome": verdict.Outcome})
	return nil
}

// checkRepeatOffender bans a user who keeps losing disputes and cancels
// their open orders.
func (s *DisputeService) checkRepeatOffender(ctx context.Context, userID uuid.UUID) {
	lost, err := s.disputeRepo.CountRecentAgainst(ctx, userID, banDisputeWindowDays)
	if err != nil || lost < banDisputeThreshold {
		return
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := repositories.NewUserRepo(tx).SetBanned(ctx, userID, true); err != nil {
			return err
		}
		cancelled, err := repositories.NewOrderRepo(tx).CancelAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		return repositories.NewAuditRepo(tx).Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "user_banned_repeat_disputes",
			EntityType: "user",
			EntityID:   &userID,
			Meta:       map[string]any{"disputes_lost": lost, "orders_cancelled": len(cancelled)},
		})
	})
	if err != nil {
		s.log.Error("failed to ban repeat offender", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	s.log.Info("user banned after repeated lost disputes", zap.String("user_id", userID.String()), zap.Int("lost", lost))
}

func (s *DisputeService) publishTrade(ctx context.Context, eventType string, trade *models.Trade, extra map[string]any) {
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
