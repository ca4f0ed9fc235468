package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
)

type TradeRepo struct {
	q db.Querier
}

func NewTradeRepo(q db.Querier) *TradeRepo {
	return &TradeRepo{q: q}
}

const tradeColumns = `id, order_id, buyer_id, seller_id, amount, price, fiat_amount, currency,
	payment_method, escrow_id, fee_amount, fee_bps, status, dispute_reason, dispute_resolution,
	buyer_rating, seller_rating, created_at, funded_at, fiat_sent_at, completed_at, updated_at`

func (r *TradeRepo) Create(ctx context.Context, t *models.Trade) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO trades (order_id, buyer_id, seller_id, amount, price, fiat_amount, currency,
		                    payment_method, escrow_id, fee_amount, fee_bps, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, t.OrderID, t.BuyerID, t.SellerID, t.Amount, t.Price, t.FiatAmount, t.Currency,
		t.PaymentMethod, t.EscrowID, t.FeeAmount, t.FeeBPS, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	return r.scanTrade(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
}

// GetByEscrowID maps an on-chain escrow back to its trade. Used by the
// indexer and the reconciler.
func (r *TradeRepo) GetByEscrowID(ctx context.Context, escrowID string) (*models.Trade, error) {
	return r.scanTrade(ctx, `SELECT `+tradeColumns+` FROM trades WHERE escrow_id = $1`, escrowID)
}

type TradeFilter struct {
	UserID  *uuid.UUID // matches either side
	OrderID *uuid.UUID
	Status  *models.TradeStatus
	Limit   int
	Offset  int
}

func (r *TradeRepo) List(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE true`
	args := []any{}
	argIdx := 1

	if f.UserID != nil {
		query += fmt.Sprintf(" AND (buyer_id = $%d OR seller_id = $%d)", argIdx, argIdx)
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.OrderID != nil {
		query += fmt.Sprintf(" AND order_id = $%d", argIdx)
		args = append(args, *f.OrderID)
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *f.Status)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	return r.scanTrades(ctx, query, args...)
}

// UpdateStatus flips the trade status only along a valid edge: the WHERE
// clause pins the expected current status, so a concurrent transition
// loses by updating zero rows.
func (r *TradeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.TradeStatus) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE trades SET status = $3, updated_at = now() WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TradeRepo) MarkFunded(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE trades SET status = $2, funded_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, models.TradeStatusEscrowLocked, models.TradeStatusAwaitingEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TradeRepo) MarkFiatSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE trades SET status = $2, fiat_sent_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, models.TradeStatusFiatSent, models.TradeStatusEscrowLocked)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TradeRepo) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE trades SET status = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, models.TradeStatusCompleted, models.TradeStatusReleasing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TradeRepo) SetDispute(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE trades SET status = $2, dispute_reason = $3, updated_at = now()
		WHERE id = $1 AND status IN ($4, $5, $6)
	`, id, models.TradeStatusDisputed, reason,
		models.TradeStatusEscrowLocked, models.TradeStatusFiatSent, models.TradeStatusReleasing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TradeRepo) SetResolution(ctx context.Context, id uuid.UUID, to models.TradeStatus, resolution string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE trades SET status = $2, dispute_resolution = $3, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, to, resolution, models.TradeStatusDisputed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TradeRepo) SetRating(ctx context.Context, id uuid.UUID, byBuyer bool, rating int) error {
	col := "seller_rating" // buyer rates the seller
	if !byBuyer {
		col = "buyer_rating"
	}
	_, err := r.q.Exec(ctx, `UPDATE trades SET `+col+` = $1, updated_at = now() WHERE id = $2`, rating, id)
	return err
}

// ListFundingTimedOut returns trades still awaiting escrow past the
// funding window.
func (r *TradeRepo) ListFundingTimedOut(ctx context.Context, timeoutSeconds int) ([]models.Trade, error) {
	return r.scanTrades(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE status = $1 AND created_at < now() - ($2 || ' seconds')::interval
	`, models.TradeStatusAwaitingEscrow, fmt.Sprintf("%d", timeoutSeconds))
}

// ListFiatConfirmTimedOut returns trades where the buyer marked fiat sent
// but the seller has not confirmed within the window. These auto-escalate
// to disputes.
func (r *TradeRepo) ListFiatConfirmTimedOut(ctx context.Context, timeoutSeconds int) ([]models.Trade, error) {
	return r.scanTrades(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE status = $1 AND fiat_sent_at < now() - ($2 || ' seconds')::interval
	`, models.TradeStatusFiatSent, fmt.Sprintf("%d", timeoutSeconds))
}

// ListNonTerminal returns trades whose escrow state the reconciler should
// cross-check against the chain.
func (r *TradeRepo) ListNonTerminal(ctx context.Context, limit int) ([]models.Trade, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.scanTrades(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE status IN ($1, $2, $3, $4, $5)
		ORDER BY updated_at ASC LIMIT $6
	`, models.TradeStatusAwaitingEscrow, models.TradeStatusEscrowLocked, models.TradeStatusFiatSent,
		models.TradeStatusReleasing, models.TradeStatusDisputed, limit)
}

func (r *TradeRepo) CountActiveBetween(ctx context.Context, buyerID, sellerID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FROM trades
		WHERE buyer_id = $1 AND seller_id = $2
		  AND status NOT IN ($3, $4, $5, $6, $7)
	`, buyerID, sellerID,
		models.TradeStatusCompleted, models.TradeStatusResolvedRelease, models.TradeStatusResolvedRefund,
		models.TradeStatusCancelled, models.TradeStatusExpired).Scan(&n)
	return n, err
}

func (r *TradeRepo) scanTrade(ctx context.Context, query string, args ...any) (*models.Trade, error) {
	var t models.Trade
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&t.ID, &t.OrderID, &t.BuyerID, &t.SellerID, &t.Amount, &t.Price, &t.FiatAmount, &t.Currency,
		&t.PaymentMethod, &t.EscrowID, &t.FeeAmount, &t.FeeBPS, &t.Status, &t.DisputeReason, &t.DisputeResolution,
		&t.BuyerRating, &t.SellerRating, &t.CreatedAt, &t.FundedAt, &t.FiatSentAt, &t.CompletedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TradeRepo) scanTrades(ctx context.Context, query string, args ...any) ([]models.Trade, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(
			&t.ID, &t.OrderID, &t.BuyerID, &t.SellerID, &t.Amount, &t.Price, &t.FiatAmount, &t.Currency,
			&t.PaymentMethod, &t.EscrowID, &t.FeeAmount, &t.FeeBPS, &t.Status, &t.DisputeReason, &t.DisputeResolution,
			&t.BuyerRating, &t.SellerRating, &t.CreatedAt, &t.FundedAt, &t.FiatSentAt, &t.CompletedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
