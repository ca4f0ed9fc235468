package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
)

type OrderRepo struct {
	q db.Querier
}

// NewOrderRepo accepts the pool or a transaction, so order mutations can
// join the same unit of work as the trade rows they pair with.
func NewOrderRepo(q db.Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

const orderColumns = `id, user_id, side, amount, remaining_amount, price, currency,
	payment_methods, min_trade_amount, max_trade_amount, status, expires_at, created_at, updated_at`

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO orders (user_id, side, amount, remaining_amount, price, currency,
		                    payment_methods, min_trade_amount, max_trade_amount, status, expires_at)
		VALUES ($1, $2, $3, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, o.UserID, o.Side, o.Amount, o.Price, o.Currency,
		o.PaymentMethods, o.MinTradeAmount, o.MaxTradeAmount, o.Status, o.ExpiresAt,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.q.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &o.UserID, &o.Side, &o.Amount, &o.RemainingAmount, &o.Price, &o.Currency,
		&o.PaymentMethods, &o.MinTradeAmount, &o.MaxTradeAmount, &o.Status, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

type OrderFilter struct {
	Side          *models.OrderSide
	Currency      *string
	PaymentMethod *string
	UserID        *uuid.UUID
	MinRemaining  *decimal.Decimal // only orders that can still fill this much
	Limit         int
	Offset        int
}

// ListOpen returns acceptable orders in price-time priority: best price
// first (lowest for sell orders, highest for buy orders), oldest first
// within the same price.
func (r *OrderRepo) ListOpen(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query, args := buildListOpenQuery(f)
	return r.scanOrders(ctx, query, args...)
}

func buildListOpenQuery(f OrderFilter) (string, []any) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status IN ('active', 'partially_matched') AND expires_at > now()
	`
	args := []any{}
	argIdx := 1

	if f.Side != nil {
		query += fmt.Sprintf(" AND side = $%d", argIdx)
		args = append(args, *f.Side)
		argIdx++
	}
	if f.Currency != nil {
		query += fmt.Sprintf(" AND currency = $%d", argIdx)
		args = append(args, *f.Currency)
		argIdx++
	}
	if f.PaymentMethod != nil {
		query += fmt.Sprintf(" AND $%d = ANY(payment_methods)", argIdx)
		args = append(args, *f.PaymentMethod)
		argIdx++
	}
	if f.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.MinRemaining != nil {
		query += fmt.Sprintf(" AND remaining_amount >= $%d", argIdx)
		args = append(args, *f.MinRemaining)
		argIdx++
	}

	if f.Side != nil && *f.Side == models.OrderSideBuy {
		query += " ORDER BY price DESC, created_at ASC"
	} else {
		query += " ORDER BY price ASC, created_at ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	return query, args
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return r.scanOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
}

// ApplyFill decrements remaining capacity with a guarded UPDATE. The guard
// repeats the acceptability checks, so of two racing acceptances only one
// sees a row updated; the loser must re-read and fail.
func (r *OrderRepo) ApplyFill(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE orders SET
			remaining_amount = remaining_amount - $2,
			status = CASE WHEN remaining_amount - $2 = 0 THEN 'matched' ELSE 'partially_matched' END,
			updated_at = now()
		WHERE id = $1
		  AND status IN ('active', 'partially_matched')
		  AND remaining_amount >= $2
	`, id, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RestoreFill returns capacity after a trade ends without release.
func (r *OrderRepo) RestoreFill(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := r.q.Exec(ctx, `
		UPDATE orders SET
			remaining_amount = remaining_amount + $2,
			status = CASE WHEN remaining_amount + $2 = amount THEN 'active' ELSE 'partially_matched' END,
			updated_at = now()
		WHERE id = $1 AND status IN ('partially_matched', 'matched')
	`, id, amount)
	return err
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	_, err := r.q.Exec(ctx, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

// ExpireStale flips open orders past their expiry and reports which ones.
func (r *OrderRepo) ExpireStale(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `
		UPDATE orders SET status = 'expired', updated_at = now()
		WHERE status IN ('active', 'partially_matched') AND expires_at <= now()
		RETURNING id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CancelAllForUser closes every open order of a banned user.
func (r *OrderRepo) CancelAllForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `
		UPDATE orders SET status = 'cancelled', updated_at = now()
		WHERE user_id = $1 AND status IN ('active', 'partially_matched')
		RETURNING id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *OrderRepo) scanOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Side, &o.Amount, &o.RemainingAmount, &o.Price, &o.Currency,
			&o.PaymentMethods, &o.MinTradeAmount, &o.MaxTradeAmount, &o.Status, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
