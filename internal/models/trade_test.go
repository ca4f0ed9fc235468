package models

import "testing"

func TestIsValidTradeTransition(t *testing.T) {
	tests := []struct {
		from     TradeStatus
		to       TradeStatus
		expected bool
	}{
		// Happy path
		{TradeStatusAwaitingEscrow, TradeStatusEscrowLocked, true},
		{TradeStatusEscrowLocked, TradeStatusFiatSent, true},
		{TradeStatusFiatSent, TradeStatusReleasing, true},
		{TradeStatusReleasing, TradeStatusCompleted, true},

		// Early exits from awaiting_escrow
		{TradeStatusAwaitingEscrow, TradeStatusCancelled, true},
		{TradeStatusAwaitingEscrow, TradeStatusExpired, true},

		// Disputes from every escrow-active state
		{TradeStatusEscrowLocked, TradeStatusDisputed, true},
		{TradeStatusFiatSent, TradeStatusDisputed, true},
		{TradeStatusReleasing, TradeStatusDisputed, true},
		{TradeStatusDisputed, TradeStatusResolvedRelease, true},
		{TradeStatusDisputed, TradeStatusResolvedRefund, true},

		// No skipping forward
		{TradeStatusAwaitingEscrow, TradeStatusFiatSent, false},
		{TradeStatusAwaitingEscrow, TradeStatusCompleted, false},
		{TradeStatusEscrowLocked, TradeStatusCompleted, false},
		{TradeStatusEscrowLocked, TradeStatusReleasing, false},

		// No going back
		{TradeStatusFiatSent, TradeStatusEscrowLocked, false},
		{TradeStatusCompleted, TradeStatusDisputed, false},
		{TradeStatusCompleted, TradeStatusAwaitingEscrow, false},
		{TradeStatusCancelled, TradeStatusEscrowLocked, false},
		{TradeStatusExpired, TradeStatusEscrowLocked, false},
		{TradeStatusResolvedRelease, TradeStatusDisputed, false},
		{TradeStatusResolvedRefund, TradeStatusDisputed, false},

		// Cannot dispute before funds are locked, cannot cancel after
		{TradeStatusAwaitingEscrow, TradeStatusDisputed, false},
		{TradeStatusEscrowLocked, TradeStatusCancelled, false},
		{TradeStatusFiatSent, TradeStatusExpired, false},

		{"nonexistent", TradeStatusEscrowLocked, false},
		{TradeStatusAwaitingEscrow, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			result := IsValidTradeTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTradeTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalTradeStatuses(t *testing.T) {
	terminal := []TradeStatus{
		TradeStatusCompleted, TradeStatusCancelled, TradeStatusExpired,
		TradeStatusResolvedRelease, TradeStatusResolvedRefund,
	}
	for _, s := range terminal {
		if !IsTerminalTradeStatus(s) {
			t.Errorf("status %q should be terminal", s)
		}
		if len(ValidTradeTransitions[s]) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", s, ValidTradeTransitions[s])
		}
	}

	active := []TradeStatus{
		TradeStatusAwaitingEscrow, TradeStatusEscrowLocked, TradeStatusFiatSent,
		TradeStatusReleasing, TradeStatusDisputed,
	}
	for _, s := range active {
		if IsTerminalTradeStatus(s) {
			t.Errorf("status %q should not be terminal", s)
		}
	}
}

func TestRestoresOrderCapacity(t *testing.T) {
	tests := []struct {
		status   TradeStatus
		expected bool
	}{
		{TradeStatusCancelled, true},
		{TradeStatusExpired, true},
		{TradeStatusResolvedRefund, true},
		{TradeStatusCompleted, false},
		{TradeStatusResolvedRelease, false},
		{TradeStatusEscrowLocked, false},
	}
	for _, tt := range tests {
		if got := RestoresOrderCapacity(tt.status); got != tt.expected {
			t.Errorf("RestoresOrderCapacity(%q) = %v, want %v", tt.status, got, tt.expected)
		}
	}
}

func TestNewEscrowIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewEscrowID()
		if len(id) != 32 {
			t.Fatalf("escrow id length = %d, want 32 hex chars", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate escrow id generated: %s", id)
		}
		seen[id] = true
	}
}
