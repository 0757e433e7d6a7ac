package oracle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/0xfraan/leverbet/internal/domain"
)

const (
	// selectorLen is the width of the opcode tag prefixing the settle
	// instruction.
	selectorLen = 8

	// SettleInstructionLen is the full finalization command length:
	// selector + bet_id + open_price + close_price.
	SettleInstructionLen = selectorLen + 24
)

// settleSelector tags the finalization command: the first 8 bytes of
// sha256("global:settle_bet").
var settleSelector = func() [selectorLen]byte {
	h := sha256.Sum256([]byte("global:settle_bet"))
	var sel [selectorLen]byte
	copy(sel[:], h[:selectorLen])
	return sel
}()

// EncodeSettleInstruction builds the finalization command bytes: the settle
// selector followed by bet_id, open_price, and close_price as fixed-width
// little-endian u64 fields.
func EncodeSettleInstruction(betID, openPrice, closePrice uint64) []byte {
	buf := make([]byte, SettleInstructionLen)
	copy(buf[:selectorLen], settleSelector[:])
	binary.LittleEndian.PutUint64(buf[selectorLen:], betID)
	binary.LittleEndian.PutUint64(buf[selectorLen+8:], openPrice)
	binary.LittleEndian.PutUint64(buf[selectorLen+16:], closePrice)
	return buf
}

// DecodeSettleInstruction parses finalization command bytes produced by
// EncodeSettleInstruction.
func DecodeSettleInstruction(data []byte) (betID, openPrice, closePrice uint64, err error) {
	if len(data) != SettleInstructionLen {
		return 0, 0, 0, fmt.Errorf("oracle: settle instruction is %d bytes, want %d: %w",
			len(data), SettleInstructionLen, domain.ErrArgParse)
	}
	if !bytes.Equal(data[:selectorLen], settleSelector[:]) {
		return 0, 0, 0, fmt.Errorf("oracle: unknown instruction selector: %w", domain.ErrArgParse)
	}
	betID = binary.LittleEndian.Uint64(data[selectorLen:])
	openPrice = binary.LittleEndian.Uint64(data[selectorLen+8:])
	closePrice = binary.LittleEndian.Uint64(data[selectorLen+16:])
	return betID, openPrice, closePrice, nil
}

// SettleAccounts is the fixed-order account list a finalization command is
// addressed to. The ledger-side accounts (bet, state, user token, escrow)
// are mutable; the identities are read-only and the enclave signer must be
// the authenticated source of the command.
type SettleAccounts struct {
	Bet           common.Address // bet record (mutable)
	State         common.Address // pool state (mutable)
	Config        common.Address // engine config (read-only)
	UserToken     common.Address // user payment account (mutable)
	Escrow        common.Address // pool escrow (mutable)
	Function      common.Address // oracle computation identity (read-only)
	Request       common.Address // oracle request identity (read-only)
	EnclaveSigner common.Address // attested signer (read-only, authenticated)
	TransferCap   common.Address // payment-transfer capability (read-only)
}

var (
	stateSeed    = []byte("STATE")
	configSeed   = []byte("CONFIG")
	functionSeed = []byte("FUNCTION")
	transferSeed = []byte("TRANSFER")
)

// StateAddress derives the pool state record address for a program identity.
func StateAddress(program common.Address) common.Address {
	h := ethcrypto.Keccak256(stateSeed, program.Bytes())
	return common.BytesToAddress(h[12:])
}

// ConfigAddress derives the engine config record address.
func ConfigAddress(program common.Address) common.Address {
	h := ethcrypto.Keccak256(configSeed, program.Bytes())
	return common.BytesToAddress(h[12:])
}

// FunctionAddress derives the oracle computation identity.
func FunctionAddress(program common.Address) common.Address {
	h := ethcrypto.Keccak256(functionSeed, program.Bytes())
	return common.BytesToAddress(h[12:])
}

// TransferCapAddress derives the payment-transfer capability identity.
func TransferCapAddress(program common.Address) common.Address {
	h := ethcrypto.Keccak256(transferSeed, program.Bytes())
	return common.BytesToAddress(h[12:])
}

// RequestAddress derives the read-only identity for a request handle.
func RequestAddress(id uuid.UUID) common.Address {
	h := ethcrypto.Keccak256(id[:])
	return common.BytesToAddress(h[12:])
}

// SettleCommand is a signed finalization command: the instruction bytes,
// the accounts it is addressed to, the request handle that produced it, and
// the enclave signature binding the two.
type SettleCommand struct {
	Instruction []byte
	Accounts    SettleAccounts
	RequestID   uuid.UUID
	Signer      common.Address
	Signature   []byte
}
