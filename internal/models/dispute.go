package models

import (
	"time"

	"github.com/google/uuid"
)

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusDismissed   DisputeStatus = "dismissed"
)

// Dispute reasons
const (
	DisputeReasonFiatNotReceived = "fiat_not_received"
	DisputeReasonFiatNotSent     = "fiat_not_sent"
	DisputeReasonWrongAmount     = "wrong_amount"
	DisputeReasonPaymentReversed = "payment_reversed"
	DisputeReasonSellerTimeout   = "seller_confirmation_timeout"
	DisputeReasonOther           = "other"
)

// Resolution actions
const (
	ResolutionReleaseToBuyer = "release_to_buyer"
	ResolutionReturnToSeller = "return_to_seller"
	ResolutionSplit          = "split"
	ResolutionNoAction       = "no_action"
)

// Resolution outcomes
const (
	OutcomeBuyerFavor  = "buyer_favor"
	OutcomeSellerFavor = "seller_favor"
	OutcomeNeutral     = "neutral"
)

var disputeReasons = []string{
	DisputeReasonFiatNotReceived, DisputeReasonFiatNotSent, DisputeReasonWrongAmount,
	DisputeReasonPaymentReversed, DisputeReasonSellerTimeout, DisputeReasonOther,
}

var resolutionActions = []string{
	ResolutionReleaseToBuyer, ResolutionReturnToSeller, ResolutionSplit, ResolutionNoAction,
}

func IsValidDisputeReason(reason string) bool {
	for _, r := range disputeReasons {
		if r == reason {
			return true
		}
	}
	return false
}

func IsValidResolutionAction(action string) bool {
	for _, a := range resolutionActions {
		if a == action {
			return true
		}
	}
	return false
}

func (s DisputeStatus) AcceptsEvidence() bool {
	return s == DisputeStatusOpen || s == DisputeStatusUnderReview
}

// Verdict is the full effect of a resolution action: how the dispute
// closes, where the trade lands and whether the deposit moves at all.
type Verdict struct {
	TradeStatus    TradeStatus // empty: the trade is left untouched
	DisputeStatus  DisputeStatus
	Outcome        string
	ReleaseToBuyer bool
	MovesFunds     bool
}

// VerdictFor maps an arbiter's action to its verdict. The contract has no
// partial payout, so split pays the buyer like a release and is kept as
// "split" only in the dispute record. no_action dismisses the case with no
// on-chain message: the deposit stays frozen and the trade stays disputed
// until a party re-raises or an arbiter returns with a real verdict.
func VerdictFor(action string) (Verdict, bool) {
	switch action {
	case ResolutionReleaseToBuyer, ResolutionSplit:
		return Verdict{
			TradeStatus:    TradeStatusResolvedRelease,
			DisputeStatus:  DisputeStatusResolved,
			Outcome:        OutcomeBuyerFavor,
			ReleaseToBuyer: true,
			MovesFunds:     true,
		}, true
	case ResolutionReturnToSeller:
		return Verdict{
			TradeStatus:   TradeStatusResolvedRefund,
			DisputeStatus: DisputeStatusResolved,
			Outcome:       OutcomeSellerFavor,
			MovesFunds:    true,
		}, true
	case ResolutionNoAction:
		return Verdict{
			DisputeStatus: DisputeStatusDismissed,
			Outcome:       OutcomeNeutral,
		}, true
	}
	return Verdict{}, false
}

type Dispute struct {
	ID              uuid.UUID     `json:"id"`
	TradeID         uuid.UUID     `json:"trade_id"`
	RaisedBy        uuid.UUID     `json:"raised_by"`
	Against         uuid.UUID     `json:"against"`
	Reason          string        `json:"reason"`
	Description     string        `json:"description"`
	Status          DisputeStatus `json:"status"`
	Outcome         *string       `json:"outcome,omitempty"`
	Action          *string       `json:"action,omitempty"`
	ResolvedBy      *uuid.UUID    `json:"resolved_by,omitempty"`
	ResolutionNotes *string       `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}

// DisputeEvidence is append-only: rows are inserted while the dispute is
// open or under review, never updated or deleted.
type DisputeEvidence struct {
	ID          uuid.UUID `json:"id"`
	DisputeID   uuid.UUID `json:"dispute_id"`
	SubmittedBy uuid.UUID `json:"submitted_by"`
	Text        string    `json:"text"`
	Reference   *string   `json:"reference,omitempty"` // URL or tx hash
	CreatedAt   time.Time `json:"created_at"`
}
