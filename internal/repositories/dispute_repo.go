package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
)

type DisputeRepo struct {
	q db.Querier
}

func NewDisputeRepo(q db.Querier) *DisputeRepo {
	return &DisputeRepo{q: q}
}

const disputeColumns = `id, trade_id, raised_by, against, reason, description, status,
	outcome, action, resolved_by, resolution_notes, created_at, resolved_at`

func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO disputes (trade_id, raised_by, against, reason, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, d.TradeID, d.RaisedBy, d.Against, d.Reason, d.Description, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.q.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE id = $1
	`, id).Scan(&d.ID, &d.TradeID, &d.RaisedBy, &d.Against, &d.Reason, &d.Description, &d.Status,
		&d.Outcome, &d.Action, &d.ResolvedBy, &d.ResolutionNotes, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepo) GetOpenByTradeID(ctx context.Context, tradeID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.q.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE trade_id = $1 AND status IN ('open', 'under_review')
		ORDER BY created_at DESC LIMIT 1
	`, tradeID).Scan(&d.ID, &d.TradeID, &d.RaisedBy, &d.Against, &d.Reason, &d.Description, &d.Status,
		&d.Outcome, &d.Action, &d.ResolvedBy, &d.ResolutionNotes, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepo) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE status IN ('open', 'under_review')
		ORDER BY created_at ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := rows.Scan(&d.ID, &d.TradeID, &d.RaisedBy, &d.Against, &d.Reason, &d.Description, &d.Status,
			&d.Outcome, &d.Action, &d.ResolvedBy, &d.ResolutionNotes, &d.CreatedAt, &d.ResolvedAt); err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

func (r *DisputeRepo) MarkUnderReview(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		UPDATE disputes SET status = 'under_review' WHERE id = $1 AND status = 'open'
	`, id)
	return err
}

// Resolve closes the dispute exactly once: the status guard makes a second
// resolution a no-op.
func (r *DisputeRepo) Resolve(ctx context.Context, id uuid.UUID, status models.DisputeStatus, outcome, action string, resolvedBy uuid.UUID, notes *string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE disputes SET status = $2, outcome = $3, action = $4, resolved_by = $5,
		                    resolution_notes = $6, resolved_at = now()
		WHERE id = $1 AND status IN ('open', 'under_review')
	`, id, status, outcome, action, resolvedBy, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DisputeRepo) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO dispute_evidence (dispute_id, submitted_by, text, reference)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.DisputeID, e.SubmittedBy, e.Text, e.Reference).Scan(&e.ID, &e.CreatedAt)
}

func (r *DisputeRepo) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, dispute_id, submitted_by, text, reference, created_at
		FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at ASC
	`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evidence []models.DisputeEvidence
	for rows.Next() {
		var e models.DisputeEvidence
		if err := rows.Scan(&e.ID, &e.DisputeID, &e.SubmittedBy, &e.Text, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		evidence = append(evidence, e)
	}
	return evidence, rows.Err()
}

// CountEvidence enforces the per-party evidence cap at insert time.
func (r *DisputeRepo) CountEvidence(ctx context.Context, disputeID, submittedBy uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FROM dispute_evidence WHERE dispute_id = $1 AND submitted_by = $2
	`, disputeID, submittedBy).Scan(&n)
	return n, err
}

// CountRecentAgainst reports disputes lost by a user in a window, for the
// repeat-offender ban rule.
func (r *DisputeRepo) CountRecentAgainst(ctx context.Context, userID uuid.UUID, windowDays int) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FROM disputes
		WHERE against = $1 AND status = 'resolved' AND resolved_at > now() - ($2 || ' days')::interval
	`, userID, fmt.Sprintf("%d", windowDays)).Scan(&n)
	return n, err
}
