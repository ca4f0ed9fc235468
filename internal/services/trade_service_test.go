package services

import (
	"testing"

	"github.com/ZenRasta/IbisExchange-sub000/internal/escrow"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
)

func TestReconcileActionFor(t *testing.T) {
	tests := []struct {
		name   string
		status models.TradeStatus
		state  escrow.State
		want   reconcileAction
	}{
		{"release landed, mirror behind", models.TradeStatusReleasing, escrow.StateCompleted, reconcileFinalize},
		{"release send lost", models.TradeStatusReleasing, escrow.StateFiatSent, reconcileResendRelease},
		{"missed deposit notification", models.TradeStatusAwaitingEscrow, escrow.StateFunded, reconcileConfirmFunding},
		{"contract frozen, mirror not", models.TradeStatusEscrowLocked, escrow.StateDisputed, reconcileFlagDispute},
		{"frozen while releasing", models.TradeStatusReleasing, escrow.StateDisputed, reconcileFlagDispute},
		{"refunded under active trade", models.TradeStatusFiatSent, escrow.StateRefunded, reconcileWarnRefunded},
		{"mirror already disputed", models.TradeStatusDisputed, escrow.StateDisputed, reconcileNone},
		{"in sync, locked", models.TradeStatusEscrowLocked, escrow.StateFunded, reconcileNone},
		{"in sync, awaiting", models.TradeStatusAwaitingEscrow, escrow.StateCreated, reconcileNone},
		{"fiat sent both sides", models.TradeStatusFiatSent, escrow.StateFiatSent, reconcileNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconcileActionFor(tt.status, tt.state); got != tt.want {
				t.Errorf("reconcileActionFor(%s, %s) = %d, want %d", tt.status, tt.state, got, tt.want)
			}
		})
	}
}
