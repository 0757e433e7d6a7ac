package domain

import "github.com/ethereum/go-ethereum/common"

// Event bus channels for bet lifecycle notifications.
const (
	ChannelBetPlaced    = "bets:placed"
	ChannelBetExecuted  = "bets:executed"
	ChannelBetCancelled = "bets:cancelled"
)

// BetPlaced is emitted after a bet is opened and its oracle request submitted.
type BetPlaced struct {
	BetID     uint64         `json:"bet_id"`
	User      common.Address `json:"user"`
	Amount    uint64         `json:"amount"`
	Pair      string         `json:"pair"`
	Interval  uint64         `json:"interval"`
	IsLong    bool           `json:"is_long"`
	StartTime uint64         `json:"start_time"`
}

// BetExecuted is emitted when an authenticated finalization command settles
// a bet. Payout is zero for a lost bet.
type BetExecuted struct {
	BetID  uint64         `json:"bet_id"`
	User   common.Address `json:"user"`
	Won    bool           `json:"won"`
	Payout uint64         `json:"payout"`
}

// BetCancelled is emitted when the owning user cancels a bet after the
// cancel buffer has elapsed.
type BetCancelled struct {
	BetID uint64         `json:"bet_id"`
	User  common.Address `json:"user"`
}
