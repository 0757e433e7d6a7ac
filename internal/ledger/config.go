// Package ledger implements the bet lifecycle state machine and the shared
// liquidity pool accounting. A single mutex inside the Ledger serializes
// every operation that touches the pool state or a bet record; concurrent
// callers race to that serialization point and the loser of a terminal
// transition observes domain.ErrInactiveBet.
package ledger

import (
	"github.com/0xfraan/leverbet/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// MaxPairs is the capacity of the accepted-pair set.
const MaxPairs = 10

// Config holds the engine configuration consulted by every bet operation.
// It is mutated only through the authority-gated config operations on the
// Ledger, which hold the ledger mutex.
type Config struct {
	// ProgramID is the engine's own identity; payouts and refunds out of
	// escrow are authorized by it rather than by the user.
	ProgramID common.Address
	// Authority may invoke the config mutation operations.
	Authority common.Address
	// Escrow is the pool escrow token account.
	Escrow common.Address

	MinBet               uint64
	MaxBet               uint64
	MaxUtilizedLiquidity uint64
	// CancelBuffer is the grace period in seconds after a bet's end time
	// during which only oracle settlement may resolve it.
	CancelBuffer uint64
	MinInterval  uint64
	MaxInterval  uint64
	// Leverage is a fixed-point multiplier with scale domain.LeverageScale.
	Leverage uint64

	NumPairs      int
	AcceptedPairs [MaxPairs]domain.Pair
}

// acceptsPair checks membership over the first NumPairs configured entries.
func (c *Config) acceptsPair(pair domain.Pair) bool {
	n := c.NumPairs
	if n > MaxPairs {
		n = MaxPairs
	}
	for i := 0; i < n; i++ {
		if c.AcceptedPairs[i] == pair {
			return true
		}
	}
	return false
}
