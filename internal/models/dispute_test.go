package models

import "testing"

func TestVerdictFor(t *testing.T) {
	tests := []struct {
		action string
		want   Verdict
	}{
		{ResolutionReleaseToBuyer, Verdict{
			TradeStatus:    TradeStatusResolvedRelease,
			DisputeStatus:  DisputeStatusResolved,
			Outcome:        OutcomeBuyerFavor,
			ReleaseToBuyer: true,
			MovesFunds:     true,
		}},
		{ResolutionSplit, Verdict{
			TradeStatus:    TradeStatusResolvedRelease,
			DisputeStatus:  DisputeStatusResolved,
			Outcome:        OutcomeBuyerFavor,
			ReleaseToBuyer: true,
			MovesFunds:     true,
		}},
		{ResolutionReturnToSeller, Verdict{
			TradeStatus:   TradeStatusResolvedRefund,
			DisputeStatus: DisputeStatusResolved,
			Outcome:       OutcomeSellerFavor,
			MovesFunds:    true,
		}},
		{ResolutionNoAction, Verdict{
			DisputeStatus: DisputeStatusDismissed,
			Outcome:       OutcomeNeutral,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got, ok := VerdictFor(tt.action)
			if !ok {
				t.Fatalf("VerdictFor(%q) not recognized", tt.action)
			}
			if got != tt.want {
				t.Errorf("VerdictFor(%q) = %+v, want %+v", tt.action, got, tt.want)
			}
		})
	}

	if _, ok := VerdictFor("burn_it"); ok {
		t.Error("unknown action must not map to a verdict")
	}
}

// A dismissal must not move funds or touch the trade: the deposit stays
// frozen and the disputed status survives for a later re-raise.
func TestNoActionLeavesTradeUntouched(t *testing.T) {
	v, _ := VerdictFor(ResolutionNoAction)
	if v.MovesFunds {
		t.Error("no_action must not move the deposit")
	}
	if v.TradeStatus != "" {
		t.Errorf("no_action trade status = %q, want unchanged", v.TradeStatus)
	}
	if v.DisputeStatus != DisputeStatusDismissed {
		t.Errorf("no_action dispute status = %q, want dismissed", v.DisputeStatus)
	}
}
