package ton

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

func testAddr() *address.Address {
	data := bytes.Repeat([]byte{0x42}, 32)
	return address.NewAddress(0, 0, data)
}

func commentCell(text string) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(0, 32).
		MustStoreSlice([]byte(text), uint(len(text)*8)).
		EndCell()
}

func TestParseTransferNotification(t *testing.T) {
	sender := testAddr()

	body := cell.BeginCell().
		MustStoreUInt(OpJettonTransferNotification, 32).
		MustStoreUInt(7, 64).
		MustStoreBigCoins(big.NewInt(50_000_000)).
		MustStoreAddr(sender).
		MustStoreBoolBit(true).
		MustStoreRef(commentCell("a1b2c3d4e5f60718293a4b5c6d7e8f90")).
		EndCell()

	dep, err := ParseTransferNotification(body)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), dep.QueryID)
	assert.Equal(t, int64(50_000_000), dep.Amount.Int64())
	assert.Equal(t, sender.String(), dep.Sender.String())
	assert.Equal(t, "a1b2c3d4e5f60718293a4b5c6d7e8f90", dep.EscrowID)
}

func TestParseTransferNotificationInlinePayload(t *testing.T) {
	body := cell.BeginCell().
		MustStoreUInt(OpJettonTransferNotification, 32).
		MustStoreUInt(1, 64).
		MustStoreBigCoins(big.NewInt(1000)).
		MustStoreAddr(testAddr()).
		MustStoreBoolBit(false).
		MustStoreUInt(0, 32).
		MustStoreSlice([]byte("esc42"), 40).
		EndCell()

	dep, err := ParseTransferNotification(body)
	require.NoError(t, err)
	assert.Equal(t, "esc42", dep.EscrowID)
}

func TestParseTransferNotificationNoComment(t *testing.T) {
	body := cell.BeginCell().
		MustStoreUInt(OpJettonTransferNotification, 32).
		MustStoreUInt(1, 64).
		MustStoreBigCoins(big.NewInt(1000)).
		MustStoreAddr(testAddr()).
		MustStoreBoolBit(false).
		EndCell()

	dep, err := ParseTransferNotification(body)
	require.NoError(t, err)
	assert.Empty(t, dep.EscrowID)
}

func TestParseTransferNotificationWrongOp(t *testing.T) {
	body := cell.BeginCell().
		MustStoreUInt(0x12345678, 32).
		MustStoreUInt(1, 64).
		EndCell()

	_, err := ParseTransferNotification(body)
	assert.ErrorIs(t, err, ErrNotTransferNotification)

	_, err = ParseTransferNotification(nil)
	assert.ErrorIs(t, err, ErrNotTransferNotification)
}
