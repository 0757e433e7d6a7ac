// Package token implements the token-movement capability as an in-process
// balance book. Each address maps to a single fungible balance; the engine
// moves stakes into escrow and payouts back out through it.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xfraan/leverbet/internal/domain"
)

// Book is a mutex-guarded balance book implementing domain.TokenTransfer.
type Book struct {
	mu       sync.Mutex
	balances map[common.Address]uint64
	logger   *slog.Logger
}

// NewBook creates an empty Book.
func NewBook(logger *slog.Logger) *Book {
	return &Book{
		balances: make(map[common.Address]uint64),
		logger:   logger.With(slog.String("component", "token")),
	}
}

var _ domain.TokenTransfer = (*Book)(nil)

// Transfer moves amount from one account to another. The transfer fails when
// the source balance is insufficient; balances never go negative.
func (b *Book) Transfer(ctx context.Context, from, to, authority common.Address, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bal := b.balances[from]
	if bal < amount {
		return fmt.Errorf("token: account %s holds %d, cannot move %d: %w",
			from.Hex(), bal, amount, domain.ErrInvalidAmount)
	}

	b.balances[from] = bal - amount
	b.balances[to] += amount

	b.logger.DebugContext(ctx, "transfer",
		slog.String("from", from.Hex()),
		slog.String("to", to.Hex()),
		slog.String("authority", authority.Hex()),
		slog.Uint64("amount", amount),
	)
	return nil
}

// Credit adds amount to an account, creating it if needed.
func (b *Book) Credit(addr common.Address, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] += amount
}

// Balance returns the current balance of an account.
func (b *Book) Balance(addr common.Address) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[addr]
}
