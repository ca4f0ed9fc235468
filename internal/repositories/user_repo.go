package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
)

type UserRepo struct {
	q db.Querier
}

func NewUserRepo(q db.Querier) *UserRepo {
	return &UserRepo{q: q}
}

const userColumns = `id, telegram_user_id, username, first_name, last_name, kyc_tier, banned,
	total_trades, successful_trades, total_volume, reputation_score, created_at, last_active_at`

func (r *UserRepo) UpsertByTelegramID(ctx context.Context, telegramID int64, username, firstName, lastName *string) (*models.User, error) {
	var u models.User
	err := r.q.QueryRow(ctx, `
		INSERT INTO users (telegram_user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_user_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username),
			first_name = COALESCE(EXCLUDED.first_name, users.first_name),
			last_name = COALESCE(EXCLUDED.last_name, users.last_name),
			last_active_at = now()
		RETURNING `+userColumns+`
	`, telegramID, username, firstName, lastName).Scan(
		&u.ID, &u.TelegramUserID, &u.Username, &u.FirstName, &u.LastName, &u.KYCTier, &u.Banned,
		&u.TotalTrades, &u.SuccessfulTrades, &u.TotalVolume, &u.ReputationScore, &u.CreatedAt, &u.LastActiveAt,
	)
	return &u, err
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.q.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.TelegramUserID, &u.Username, &u.FirstName, &u.LastName, &u.KYCTier, &u.Banned,
		&u.TotalTrades, &u.SuccessfulTrades, &u.TotalVolume, &u.ReputationScore, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := r.q.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE telegram_user_id = $1
	`, telegramID).Scan(&u.ID, &u.TelegramUserID, &u.Username, &u.FirstName, &u.LastName, &u.KYCTier, &u.Banned,
		&u.TotalTrades, &u.SuccessfulTrades, &u.TotalVolume, &u.ReputationScore, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

func (r *UserRepo) SetKYCTier(ctx context.Context, id uuid.UUID, tier int) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET kyc_tier = $1 WHERE id = $2`, tier, id)
	return err
}

func (r *UserRepo) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET banned = $1 WHERE id = $2`, banned, id)
	return err
}

// RecordTradeOutcome bumps the counters and recomputes the reputation
// score in one statement, so concurrent settlements cannot lose updates.
// volume only grows on success; a failed trade still counts as a trade.
func (r *UserRepo) RecordTradeOutcome(ctx context.Context, id uuid.UUID, successful bool, volume decimal.Decimal) error {
	succ := 0
	if successful {
		succ = 1
	}
	var u models.User
	err := r.q.QueryRow(ctx, `
		UPDATE users SET
			total_trades = total_trades + 1,
			successful_trades = successful_trades + $2,
			total_volume = total_volume + $3
		WHERE id = $1
		RETURNING total_trades, successful_trades, total_volume
	`, id, succ, volume).Scan(&u.TotalTrades, &u.SuccessfulTrades, &u.TotalVolume)
	if err != nil {
		return err
	}

	score := models.ComputeReputationScore(u.SuccessfulTrades, u.TotalTrades, u.TotalVolume)
	_, err = r.q.Exec(ctx, `UPDATE users SET reputation_score = $1 WHERE id = $2`, score, id)
	return err
}
