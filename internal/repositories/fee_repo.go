package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
)

type FeeRepo struct {
	q db.Querier
}

func NewFeeRepo(q db.Querier) *FeeRepo {
	return &FeeRepo{q: q}
}

func (r *FeeRepo) Create(ctx context.Context, f *models.FeeRecord) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO fee_records (trade_id, payer_id, amount, fee_bps, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, f.TradeID, f.PayerID, f.Amount, f.FeeBPS, f.Status).Scan(&f.ID, &f.CreatedAt)
}

func (r *FeeRepo) GetByTradeID(ctx context.Context, tradeID uuid.UUID) (*models.FeeRecord, error) {
	var f models.FeeRecord
	err := r.q.QueryRow(ctx, `
		SELECT id, trade_id, payer_id, amount, fee_bps, status, created_at, settled_at
		FROM fee_records WHERE trade_id = $1
	`, tradeID).Scan(&f.ID, &f.TradeID, &f.PayerID, &f.Amount, &f.FeeBPS, &f.Status, &f.CreatedAt, &f.SettledAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Settle flips a pending fee to settled. The status guard makes the
// settlement idempotent: a fee is collected exactly once per trade.
func (r *FeeRepo) Settle(ctx context.Context, tradeID uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE fee_records SET status = $2, settled_at = now()
		WHERE trade_id = $1 AND status = $3
	`, tradeID, models.FeeStatusSettled, models.FeeStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Void cancels a pending fee when the trade ends without release.
func (r *FeeRepo) Void(ctx context.Context, tradeID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		UPDATE fee_records SET status = $2
		WHERE trade_id = $1 AND status = $3
	`, tradeID, models.FeeStatusVoided, models.FeeStatusPending)
	return err
}

// TotalSettled sums collected fees, optionally since a cutoff. Admin
// reporting only.
func (r *FeeRepo) TotalSettled(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(sum(amount), 0) FROM fee_records WHERE status = 'settled'
	`).Scan(&total)
	return total, err
}
