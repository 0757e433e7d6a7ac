package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// BetArchive persists bet records durably. The in-memory ledger is the
// authoritative copy; the archive is written through on every transition so
// that bet history survives restarts and can be queried and archived.
type BetArchive interface {
	Insert(ctx context.Context, bet Bet) error
	// MarkSettled records the terminal settled state: prices, the final
	// payout (zero when lost), and active=false.
	MarkSettled(ctx context.Context, bet Bet, won bool) error
	// MarkCancelled records the terminal cancelled state.
	MarkCancelled(ctx context.Context, bet Bet) error
	GetByID(ctx context.Context, betID uint64) (Bet, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Bet, error)
	// ListTerminalBefore returns settled or cancelled bets whose end time is
	// strictly before the cutoff, for cold-storage archival.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]Bet, error)
}
