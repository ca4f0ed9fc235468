package escrow

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyer        = "EQbuyer"
	seller       = "EQseller"
	arbiter      = "EQarbiter"
	feeCollector = "EQfees"
	stranger     = "EQstranger"
)

func newTestContract(t *testing.T) (*Contract, *time.Time) {
	t.Helper()
	c := NewContract(arbiter, feeCollector, 50, 24*time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })
	return c, &now
}

func fundedEscrow(t *testing.T, c *Contract, id string) {
	t.Helper()
	require.NoError(t, c.Create(buyer, id, seller, big.NewInt(50_000_000), "4500.00"))
	require.NoError(t, c.NotifyDeposit(seller, id, big.NewInt(50_000_000)))
}

func TestCreate(t *testing.T) {
	c, _ := newTestContract(t)

	require.NoError(t, c.Create(buyer, "esc1", seller, big.NewInt(1000), "90.00"))

	rec, err := c.Get("esc1")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, rec.State)
	assert.Equal(t, buyer, rec.Buyer)
	assert.Equal(t, seller, rec.Seller)

	// Same id again must bounce, whoever sends it.
	assert.ErrorIs(t, c.Create(buyer, "esc1", seller, big.NewInt(1000), "90.00"), ErrAlreadyExists)
	assert.ErrorIs(t, c.Create(stranger, "esc1", seller, big.NewInt(1000), "90.00"), ErrAlreadyExists)

	assert.ErrorIs(t, c.Create(seller, "esc2", seller, big.NewInt(1000), "90.00"), ErrUnauthorized)
	assert.ErrorIs(t, c.Create(buyer, "esc3", seller, big.NewInt(0), "0"), ErrUnderfunded)
}

func TestNotifyDeposit(t *testing.T) {
	c, _ := newTestContract(t)
	require.NoError(t, c.Create(buyer, "esc1", seller, big.NewInt(1000), "90.00"))

	t.Run("underfunded rejected", func(t *testing.T) {
		assert.ErrorIs(t, c.NotifyDeposit(seller, "esc1", big.NewInt(999)), ErrUnderfunded)
	})

	t.Run("wrong sender rejected", func(t *testing.T) {
		assert.ErrorIs(t, c.NotifyDeposit(buyer, "esc1", big.NewInt(1000)), ErrUnauthorized)
		assert.ErrorIs(t, c.NotifyDeposit(stranger, "esc1", big.NewInt(1000)), ErrUnauthorized)
	})

	t.Run("exact deposit funds", func(t *testing.T) {
		require.NoError(t, c.NotifyDeposit(seller, "esc1", big.NewInt(1000)))
		rec, err := c.Get("esc1")
		require.NoError(t, err)
		assert.Equal(t, StateFunded, rec.State)
		assert.Equal(t, int64(1000), rec.DepositedAmount.Int64())
	})

	t.Run("double funding rejected", func(t *testing.T) {
		assert.ErrorIs(t, c.NotifyDeposit(seller, "esc1", big.NewInt(1000)), ErrInvalidState)
	})

	t.Run("unknown escrow", func(t *testing.T) {
		assert.ErrorIs(t, c.NotifyDeposit(seller, "nope", big.NewInt(1000)), ErrNotFound)
	})
}

func TestOverfundedDepositKept(t *testing.T) {
	c, _ := newTestContract(t)
	require.NoError(t, c.Create(buyer, "esc1", seller, big.NewInt(1000), "90.00"))
	require.NoError(t, c.NotifyDeposit(seller, "esc1", big.NewInt(1500)))

	rec, err := c.Get("esc1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), rec.DepositedAmount.Int64())
}

func TestConfirmFiatSent(t *testing.T) {
	c, _ := newTestContract(t)
	fundedEscrow(t, c, "esc1")

	assert.ErrorIs(t, c.ConfirmFiatSent(seller, "esc1"), ErrUnauthorized)
	require.NoError(t, c.ConfirmFiatSent(buyer, "esc1"))

	rec, err := c.Get("esc1")
	require.NoError(t, err)
	assert.Equal(t, StateFiatSent, rec.State)
	assert.False(t, rec.FiatSentAt.IsZero())

	assert.ErrorIs(t, c.ConfirmFiatSent(buyer, "esc1"), ErrInvalidState)
}

func TestReleaseFunds(t *testing.T) {
	c, _ := newTestContract(t)
	fundedEscrow(t, c, "esc1")
	require.NoError(t, c.ConfirmFiatSent(buyer, "esc1"))

	_, err := c.ReleaseFunds(buyer, "esc1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	transfers, err := c.ReleaseFunds(seller, "esc1")
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	// 50 USDT at 50 bps: 0.25 USDT fee, 49.75 to the buyer.
	assert.Equal(t, buyer, transfers[0].To)
	assert.Equal(t, int64(49_750_000), transfers[0].Amount.Int64())
	assert.Equal(t, "release", transfers[0].Purpose)
	assert.Equal(t, feeCollector, transfers[1].To)
	assert.Equal(t, int64(250_000), transfers[1].Amount.Int64())
	assert.Equal(t, "fee", transfers[1].Purpose)

	rec, err := c.Get("esc1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, rec.State)

	// No double payout.
	_, err = c.ReleaseFunds(seller, "esc1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReleaseRequiresFiatSent(t *testing.T) {
	c, _ := newTestContract(t)
	fundedEscrow(t, c, "esc1")

	_, err := c.ReleaseFunds(seller, "esc1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestZeroFeePayoutHasSingleTransfer(t *testing.T) {
	c := NewContract(arbiter, feeCollector, 0, 24*time.Hour)
	require.NoError(t, c.Create(buyer, "esc1", seller, big.NewInt(1000), "90.00"))
	require.NoError(t, c.NotifyDeposit(seller, "esc1", big.NewInt(1000)))
	require.NoError(t, c.ConfirmFiatSent(buyer, "esc1"))

	transfers, err := c.ReleaseFunds(seller, "esc1")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, int64(1000), transfers[0].Amount.Int64())
}

func TestRefundWhileCreated(t *testing.T) {
	c, _ := newTestContract(t)
	require.NoError(t, c.Create(buyer, "esc1", seller, big.NewInt(1000), "90.00"))
	require.NoError(t, c.Create(buyer, "esc2", seller, big.NewInt(1000), "90.00"))

	_, err := c.RefundEscrow(stranger, "esc1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	transfers, err := c.RefundEscrow(buyer, "esc1")
	require.NoError(t, err)
	assert.Empty(t, transfers) // nothing deposited, nothing to move

	transfers, err = c.RefundEscrow(seller, "esc2")
	require.NoError(t, err)
	assert.Empty(t, transfers)

	rec, err := c.Get("esc1")
	require.NoError(t, err)
	assert.Equal(t, StateRefunded, rec.State)
}

func TestDepositAfterTeardownRejected(t *testing.T) {
	c, _ := newTestContract(t)
	require.NoError(t, c.Create(buyer, "esc1", seller, big.NewInt(1000), "90.00"))

	// Trade cancelled or expired before funding: the escrow record is torn
	// down, so a deposit arriving late has nowhere to land.
	_, err := c.RefundEscrow(seller, "esc1")
	require.NoError(t, err)

	err = c.NotifyDeposit(seller, "esc1", big.NewInt(1000))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSellerRefundWhileFunded(t *testing.T) {
	c, _ := newTestContract(t)
	fundedEscrow(t, c, "esc1")

	transfers, err := c.RefundEscrow(seller, "esc1")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, seller, transfers[0].To)
	assert.Equal(t, int64(50_000_000), transfers[0].Amount.Int64())
	assert.Equal(t, "refund", transfers[0].Purpose)
}

func TestSellerCannotRefundAfterFiatSent(t *testing.T) {
	c, _ := newTestContract(t)
	fundedEscrow(t, c, "esc1")
	require.NoError(t, c.ConfirmFiatSent(buyer, "esc1"))

	_, err := c.RefundEscrow(seller, "esc1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestBuyerTimeoutRefund(t *testing.T) {
	c, now := newTestContract(t)
	fundedEscrow(t, c, "esc1")

	_, err := c.RefundEscrow(buyer, "esc1")
	assert.ErrorIs(t, err, ErrTimeoutNotElapsed)

	*now = now.Add(24*time.Hour + time.Minute)

	transfers, err := c.RefundEscrow(buyer, "esc1")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, seller, transfers[0].To)
}

func TestBuyerTimeoutRefundAnchorsOnFiatSent(t *testing.T) {
	c, now := newTestContract(t)
	fundedEscrow(t, c, "esc1")

	*now = now.Add(20 * time.Hour)
	require.NoError(t, c.ConfirmFiatSent(buyer, "esc1"))

	// 23h after creation but only 3h after fiat-sent: still locked.
	*now = now.Add(3 * time.Hour)
	_, err := c.RefundEscrow(buyer, "esc1")
	assert.ErrorIs(t, err, ErrTimeoutNotElapsed)

	*now = now.Add(22 * time.Hour)
	_, err = c.RefundEscrow(buyer, "esc1")
	require.NoError(t, err)
}

func TestDisputeEscrow(t *testing.T) {
	c, _ := newTestContract(t)
	fundedEscrow(t, c, "esc1")

	assert.ErrorIs(t, c.DisputeEscrow(stranger, "esc1"), ErrUnauthorized)
	require.NoError(t, c.DisputeEscrow(buyer, "esc1"))

	rec, err := c.Get("esc1")
	require.NoError(t, err)
	assert.Equal(t, StateDisputed, rec.State)

	// Frozen: normal messages bounce.
	assert.ErrorIs(t, c.ConfirmFiatSent(buyer, "esc1"), ErrInvalidState)
	_, err = c.RefundEscrow(seller, "esc1")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = c.ReleaseFunds(seller, "esc1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDisputeOnlyWhileLocked(t *testing.T) {
	c, _ := newTestContract(t)
	require.NoError(t, c.Create(buyer, "esc1", seller, big.NewInt(1000), "90.00"))

	assert.ErrorIs(t, c.DisputeEscrow(buyer, "esc1"), ErrInvalidState)
}

func TestResolveDispute(t *testing.T) {
	t.Run("release to buyer keeps fee split", func(t *testing.T) {
		c, _ := newTestContract(t)
		fundedEscrow(t, c, "esc1")
		require.NoError(t, c.DisputeEscrow(buyer, "esc1"))

		_, err := c.ResolveDispute(seller, "esc1", true)
		assert.ErrorIs(t, err, ErrUnauthorized)

		transfers, err := c.ResolveDispute(arbiter, "esc1", true)
		require.NoError(t, err)
		require.Len(t, transfers, 2)
		assert.Equal(t, buyer, transfers[0].To)
		assert.Equal(t, feeCollector, transfers[1].To)

		rec, err := c.Get("esc1")
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, rec.State)
	})

	t.Run("return to seller refunds in full", func(t *testing.T) {
		c, _ := newTestContract(t)
		fundedEscrow(t, c, "esc1")
		require.NoError(t, c.DisputeEscrow(seller, "esc1"))

		transfers, err := c.ResolveDispute(arbiter, "esc1", false)
		require.NoError(t, err)
		require.Len(t, transfers, 1)
		assert.Equal(t, seller, transfers[0].To)
		assert.Equal(t, int64(50_000_000), transfers[0].Amount.Int64())

		rec, err := c.Get("esc1")
		require.NoError(t, err)
		assert.Equal(t, StateRefunded, rec.State)
	})

	t.Run("only while disputed", func(t *testing.T) {
		c, _ := newTestContract(t)
		fundedEscrow(t, c, "esc1")

		_, err := c.ResolveDispute(arbiter, "esc1", true)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}
