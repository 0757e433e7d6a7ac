package ledger

import (
	"sync"

	"github.com/0xfraan/leverbet/internal/domain"
)

// Pool tracks the aggregate payout reserved by all currently active bets
// against a configured ceiling. It is the single point of contention when
// many bets open concurrently, so every check-and-update runs as an atomic
// read-modify-write under the pool mutex.
type Pool struct {
	mu     sync.Mutex
	locked uint64
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Reserve locks payout capacity for one bet. It rejects with
// domain.ErrInsufficientLiquidity when the reservation would push the
// aggregate past max, computed from the current value under the lock.
func (p *Pool) Reserve(payout, max uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked > max || payout > max-p.locked {
		return domain.ErrInsufficientLiquidity
	}
	p.locked += payout
	return nil
}

// Release returns previously reserved payout capacity. The ledger's
// terminal-state check guarantees it is called exactly once per bet, by
// whichever of settlement or cancellation wins.
func (p *Pool) Release(payout uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if payout > p.locked {
		// Releasing more than is reserved would mean a ledger bug; clamp
		// rather than wrap around.
		p.locked = 0
		return
	}
	p.locked -= payout
}

// Locked returns the currently reserved aggregate payout.
func (p *Pool) Locked() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}
