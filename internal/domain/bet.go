package domain

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// PairLen is the fixed width of a trading pair symbol code.
const PairLen = 8

// LeverageScale is the fixed-point denominator for the leverage multiplier:
// payout = amount * leverage / LeverageScale, integer division.
const LeverageScale = 1000

// Pair is a fixed-width trading pair symbol code, e.g. "BTCUSDXX".
type Pair [PairLen]byte

// ParsePair converts a symbol string into a Pair. Strings shorter than
// PairLen are rejected rather than padded: the accepted-pair set stores the
// exact 8-byte codes.
func ParsePair(s string) (Pair, error) {
	var p Pair
	if len(s) != PairLen {
		return p, fmt.Errorf("pair %q must be exactly %d bytes: %w", s, PairLen, ErrInvalidPair)
	}
	copy(p[:], s)
	return p, nil
}

// String returns the symbol code with any trailing NUL padding removed.
func (p Pair) String() string {
	return strings.TrimRight(string(p[:]), "\x00")
}

// IsZero reports whether the pair slot is vacant.
func (p Pair) IsZero() bool {
	return p == Pair{}
}

// Bet is a single placed bet record. It is created by PlaceBet and mutated
// exactly once, by either settlement or cancellation; afterwards it is
// terminal and every further transition fails with ErrInactiveBet.
type Bet struct {
	ID         uint64
	Amount     uint64 // wagered stake
	Payout     uint64 // reserved win amount; zeroed when the bet is lost
	StartTime  uint64 // unix seconds
	EndTime    uint64 // StartTime + interval
	OpenPrice  uint64 // zero until settled
	ClosePrice uint64 // zero until settled
	User       common.Address
	UserToken  common.Address // user payment account
	Pair       Pair
	IsLong     bool
	Active     bool
	RequestID  uuid.UUID // bound oracle request handle
}

var betRecordSeed = []byte("BET")

// BetAddress derives the deterministic record address for a bet id.
func BetAddress(betID uint64) common.Address {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], betID)
	h := ethcrypto.Keccak256(betRecordSeed, id[:])
	return common.BytesToAddress(h[12:])
}

// Address returns the bet's record address.
func (b *Bet) Address() common.Address {
	return BetAddress(b.ID)
}

// Won reports the outcome for the given settlement prices. Equality always
// favors the bettor, on both sides.
func (b *Bet) Won(openPrice, closePrice uint64) bool {
	if b.IsLong {
		return closePrice >= openPrice
	}
	return closePrice <= openPrice
}

// PoolState is the shared mutable aggregate touched by every bet operation.
type PoolState struct {
	LockedLiquidity uint64 // sum of Payout over currently active bets
	NextBetID       uint64 // monotonic, never reused
}
