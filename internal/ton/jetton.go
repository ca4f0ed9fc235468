package ton

import (
	"errors"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// OpJettonTransferNotification is the TEP-74 opcode the jetton wallet sends
// to its owner after an incoming transfer.
const OpJettonTransferNotification = 0x7362d09c

var ErrNotTransferNotification = errors.New("message is not a jetton transfer notification")

// JettonDeposit is a decoded incoming jetton transfer. EscrowID comes from
// the forward payload text comment; the sender puts the escrow id there so
// the indexer can match the deposit to its escrow.
type JettonDeposit struct {
	QueryID  uint64
	Amount   *big.Int // jetton base units
	Sender   *address.Address
	EscrowID string
}

// ParseTransferNotification decodes a transfer_notification#7362d09c body:
// query_id:uint64 amount:(VarUInteger 16) sender:MsgAddress
// forward_payload:(Either Cell ^Cell).
func ParseTransferNotification(body *cell.Cell) (*JettonDeposit, error) {
	if body == nil {
		return nil, ErrNotTransferNotification
	}

	s := body.BeginParse()
	if s.BitsLeft() < 32 {
		return nil, ErrNotTransferNotification
	}

	op, err := s.LoadUInt(32)
	if err != nil || op != OpJettonTransferNotification {
		return nil, ErrNotTransferNotification
	}

	queryID, err := s.LoadUInt(64)
	if err != nil {
		return nil, err
	}

	amount, err := s.LoadBigCoins()
	if err != nil {
		return nil, err
	}

	sender, err := s.LoadAddr()
	if err != nil {
		return nil, err
	}

	comment, err := loadForwardComment(s)
	if err != nil {
		return nil, err
	}

	return &JettonDeposit{
		QueryID:  queryID,
		Amount:   amount,
		Sender:   sender,
		EscrowID: strings.TrimSpace(comment),
	}, nil
}

// loadForwardComment reads the Either Cell ^Cell forward payload and
// extracts a text comment (opcode 0x00000000) if present.
func loadForwardComment(s *cell.Slice) (string, error) {
	inRef, err := s.LoadBoolBit()
	if err != nil {
		return "", err
	}

	payload := s
	if inRef {
		ref, err := s.LoadRef()
		if err != nil {
			return "", err
		}
		payload = ref
	}

	if payload.BitsLeft() < 32 {
		return "", nil
	}
	op, err := payload.LoadUInt(32)
	if err != nil || op != 0 {
		return "", nil
	}

	remaining := payload.BitsLeft()
	if remaining == 0 {
		return "", nil
	}
	data, err := payload.LoadSlice(remaining)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
