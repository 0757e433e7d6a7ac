package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xfraan/leverbet/internal/domain"
	"github.com/0xfraan/leverbet/internal/oracle"
)

// Ledger owns the per-bet record set and its state machine. Bets live in an
// in-memory arena keyed by their monotonic id; the configured BetArchive is
// written through on every transition but is never consulted for invariant
// checks, so archive failures cannot corrupt pool accounting.
type Ledger struct {
	mu        sync.Mutex
	cfg       Config
	pool      *Pool
	bets      map[uint64]*domain.Bet
	nextBetID uint64

	transfer domain.TokenTransfer
	oracle   domain.OracleClient
	bus      domain.EventBus
	archive  domain.BetArchive
	logger   *slog.Logger

	now func() time.Time
}

// NewLedger creates a Ledger with an empty pool and arena. bus and archive
// may be nil; events and persistence are then skipped.
func NewLedger(
	cfg Config,
	transfer domain.TokenTransfer,
	oracleClient domain.OracleClient,
	bus domain.EventBus,
	archive domain.BetArchive,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		cfg:      cfg,
		pool:     NewPool(),
		bets:     make(map[uint64]*domain.Bet),
		transfer: transfer,
		oracle:   oracleClient,
		bus:      bus,
		archive:  archive,
		logger:   logger.With(slog.String("component", "ledger")),
		now:      time.Now,
	}
}

// PlaceBetParams carries the caller-supplied inputs for PlaceBet.
type PlaceBetParams struct {
	User      common.Address
	UserToken common.Address
	Amount    uint64
	Pair      domain.Pair
	Interval  uint64
	IsLong    bool
}

// PlaceBet validates the request, reserves payout capacity, moves the stake
// into escrow, submits the oracle request bound to the new bet, and records
// the bet. Reservation, transfer, and record creation are all-or-nothing:
// any failure rolls back the earlier steps.
func (l *Ledger) PlaceBet(ctx context.Context, p PlaceBetParams) (domain.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p.Amount < l.cfg.MinBet || p.Amount > l.cfg.MaxBet {
		return domain.Bet{}, domain.ErrInvalidAmount
	}
	if p.Interval < l.cfg.MinInterval || p.Interval > l.cfg.MaxInterval {
		return domain.Bet{}, domain.ErrInvalidInterval
	}
	if !l.cfg.acceptsPair(p.Pair) {
		return domain.Bet{}, domain.ErrInvalidPair
	}

	payout := p.Amount * l.cfg.Leverage / domain.LeverageScale
	if err := l.pool.Reserve(payout, l.cfg.MaxUtilizedLiquidity); err != nil {
		return domain.Bet{}, err
	}

	// Stake moves from the user's payment account into escrow, authorized
	// by the user.
	if err := l.transfer.Transfer(ctx, p.UserToken, l.cfg.Escrow, p.User, p.Amount); err != nil {
		l.pool.Release(payout)
		return domain.Bet{}, fmt.Errorf("ledger: stake transfer: %w", err)
	}

	betID := l.nextBetID
	startTime := uint64(l.now().Unix())
	endTime := startTime + p.Interval
	betAddr := domain.BetAddress(betID)

	params := oracle.RequestParams{
		ProgramID: l.cfg.ProgramID,
		BetID:     betID,
		Pair:      p.Pair.String(),
		StartTime: startTime,
		EndTime:   endTime,
		Bet:       betAddr,
		UserToken: p.UserToken,
		Escrow:    l.cfg.Escrow,
	}
	requestID, err := l.oracle.Submit(ctx, params.Encode(), betAddr)
	if err != nil {
		// Unwind the stake and the reservation so no capacity or funds are
		// stranded on a failed open.
		if refundErr := l.transfer.Transfer(ctx, l.cfg.Escrow, p.UserToken, l.cfg.ProgramID, p.Amount); refundErr != nil {
			l.logger.ErrorContext(ctx, "stake refund after failed oracle submit",
				slog.Uint64("bet_id", betID),
				slog.String("error", refundErr.Error()),
			)
		}
		l.pool.Release(payout)
		return domain.Bet{}, fmt.Errorf("ledger: oracle submit: %w", err)
	}

	bet := &domain.Bet{
		ID:        betID,
		Amount:    p.Amount,
		Payout:    payout,
		StartTime: startTime,
		EndTime:   endTime,
		User:      p.User,
		UserToken: p.UserToken,
		Pair:      p.Pair,
		IsLong:    p.IsLong,
		Active:    true,
		RequestID: requestID,
	}
	l.bets[betID] = bet
	l.nextBetID++

	l.persist(ctx, func(a domain.BetArchive) error { return a.Insert(ctx, *bet) })
	l.publish(ctx, domain.ChannelBetPlaced, domain.BetPlaced{
		BetID:     betID,
		User:      p.User,
		Amount:    p.Amount,
		Pair:      p.Pair.String(),
		Interval:  p.Interval,
		IsLong:    p.IsLong,
		StartTime: startTime,
	})

	l.logger.InfoContext(ctx, "bet placed",
		slog.Uint64("bet_id", betID),
		slog.String("user", p.User.Hex()),
		slog.Uint64("amount", p.Amount),
		slog.Uint64("payout", payout),
		slog.String("pair", p.Pair.String()),
		slog.Bool("is_long", p.IsLong),
	)

	return *bet, nil
}

// RequestExecution forwards a trigger to the oracle request bound to the
// bet. It mutates no ledger state; it only authorizes the oracle network to
// execute once the bet's end time is strictly in the past. There is no
// re-entrancy guard: repeated triggers before the oracle responds submit
// redundant computations.
func (l *Ledger) RequestExecution(ctx context.Context, betID uint64) error {
	l.mu.Lock()
	bet, ok := l.bets[betID]
	if !ok {
		l.mu.Unlock()
		return domain.ErrNotFound
	}
	if bet.EndTime >= uint64(l.now().Unix()) {
		l.mu.Unlock()
		return domain.ErrInvalidTimestamp
	}
	if !bet.Active {
		l.mu.Unlock()
		return domain.ErrInactiveBet
	}
	requestID := bet.RequestID
	l.mu.Unlock()

	if err := l.oracle.Trigger(ctx, requestID); err != nil {
		return fmt.Errorf("ledger: trigger request %s: %w", requestID, err)
	}
	return nil
}

// Settle applies an authenticated finalization command. The command is
// accepted only when its signature recovers to the enclave signer attested
// for the request bound to the target bet, and the command's bet account
// matches the bet record, so one oracle computation settles exactly one bet.
func (l *Ledger) Settle(ctx context.Context, cmd *oracle.SettleCommand) (won bool, err error) {
	betID, openPrice, closePrice, err := oracle.DecodeSettleInstruction(cmd.Instruction)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bet, ok := l.bets[betID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !bet.Active {
		return false, domain.ErrInactiveBet
	}

	if err := l.authenticate(ctx, bet, cmd); err != nil {
		return false, err
	}

	won = bet.Won(openPrice, closePrice)
	payout := bet.Payout

	if won {
		// Pay out before committing the transition so a failed transfer
		// leaves the bet active and the reservation intact.
		if err := l.transfer.Transfer(ctx, l.cfg.Escrow, bet.UserToken, l.cfg.ProgramID, payout); err != nil {
			return false, fmt.Errorf("ledger: payout transfer: %w", err)
		}
	}

	bet.Active = false
	bet.OpenPrice = openPrice
	bet.ClosePrice = closePrice
	l.pool.Release(payout)

	evt := domain.BetExecuted{BetID: betID, User: bet.User, Won: won, Payout: payout}
	if !won {
		bet.Payout = 0
		evt.Payout = 0
	}

	l.persist(ctx, func(a domain.BetArchive) error { return a.MarkSettled(ctx, *bet, won) })
	l.publish(ctx, domain.ChannelBetExecuted, evt)

	l.logger.InfoContext(ctx, "bet settled",
		slog.Uint64("bet_id", betID),
		slog.Bool("won", won),
		slog.Uint64("open_price", openPrice),
		slog.Uint64("close_price", closePrice),
		slog.Uint64("payout", evt.Payout),
	)

	return won, nil
}

// authenticate enforces the settlement capability check. Caller holds l.mu.
func (l *Ledger) authenticate(ctx context.Context, bet *domain.Bet, cmd *oracle.SettleCommand) error {
	if cmd.RequestID != bet.RequestID {
		return domain.ErrUnauthorized
	}
	if cmd.Accounts.Bet != bet.Address() {
		return domain.ErrUnauthorized
	}

	att, err := l.oracle.Attestation(ctx, bet.RequestID)
	if err != nil {
		return fmt.Errorf("ledger: resolve attestation: %w", err)
	}
	if att.Authority != bet.Address() {
		return domain.ErrUnauthorized
	}

	signer, err := oracle.RecoverSigner(cmd.Instruction, cmd.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if signer != att.Signer || cmd.Signer != att.Signer {
		return domain.ErrUnauthorized
	}
	return nil
}

// Cancel lets the owning user void a bet that was never settled, once the
// cancel buffer after its end time has fully elapsed. The full original
// stake is refunded; the reserved payout is released.
func (l *Ledger) Cancel(ctx context.Context, betID uint64, caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bet, ok := l.bets[betID]
	if !ok {
		return domain.ErrNotFound
	}
	if !bet.Active {
		return domain.ErrInactiveBet
	}
	if caller != bet.User {
		return domain.ErrUnauthorized
	}
	if bet.EndTime+l.cfg.CancelBuffer >= uint64(l.now().Unix()) {
		return domain.ErrInvalidTimestamp
	}

	if err := l.transfer.Transfer(ctx, l.cfg.Escrow, bet.UserToken, l.cfg.ProgramID, bet.Amount); err != nil {
		return fmt.Errorf("ledger: refund transfer: %w", err)
	}

	bet.Active = false
	l.pool.Release(bet.Payout)

	l.persist(ctx, func(a domain.BetArchive) error { return a.MarkCancelled(ctx, *bet) })
	l.publish(ctx, domain.ChannelBetCancelled, domain.BetCancelled{BetID: betID, User: bet.User})

	l.logger.InfoContext(ctx, "bet cancelled",
		slog.Uint64("bet_id", betID),
		slog.String("user", bet.User.Hex()),
		slog.Uint64("refund", bet.Amount),
	)

	return nil
}

// AddPairs appends pairs to the accepted set. Authority-gated.
func (l *Ledger) AddPairs(caller common.Address, pairs []domain.Pair) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.cfg.Authority {
		return domain.ErrUnauthorized
	}
	if l.cfg.NumPairs+len(pairs) > MaxPairs {
		return domain.ErrMaxPairsExceeded
	}
	for i, p := range pairs {
		l.cfg.AcceptedPairs[l.cfg.NumPairs+i] = p
	}
	l.cfg.NumPairs += len(pairs)
	return nil
}

// DeletePairs removes pairs from the accepted set, preserving the order of
// the remaining entries and clearing the vacated tail slots.
func (l *Ledger) DeletePairs(caller common.Address, pairs []domain.Pair) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.cfg.Authority {
		return domain.ErrUnauthorized
	}
	for _, remove := range pairs {
		for i := 0; i < l.cfg.NumPairs; i++ {
			if l.cfg.AcceptedPairs[i] == remove {
				copy(l.cfg.AcceptedPairs[i:l.cfg.NumPairs-1], l.cfg.AcceptedPairs[i+1:l.cfg.NumPairs])
				l.cfg.NumPairs--
				l.cfg.AcceptedPairs[l.cfg.NumPairs] = domain.Pair{}
				break
			}
		}
	}
	return nil
}

// SetAmounts replaces the bet bounds and the liquidity ceiling.
// Authority-gated; zero or inverted bounds are rejected.
func (l *Ledger) SetAmounts(caller common.Address, minBet, maxBet, maxUtilizedLiquidity uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.cfg.Authority {
		return domain.ErrUnauthorized
	}
	if minBet == 0 || maxBet == 0 || minBet >= maxBet {
		return domain.ErrInvalidAmount
	}
	l.cfg.MinBet = minBet
	l.cfg.MaxBet = maxBet
	l.cfg.MaxUtilizedLiquidity = maxUtilizedLiquidity
	return nil
}

// Bet returns a copy of the bet record.
func (l *Ledger) Bet(betID uint64) (domain.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bet, ok := l.bets[betID]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return *bet, nil
}

// ListBets returns bet copies ordered by id. When activeOnly is set,
// terminal bets are skipped.
func (l *Ledger) ListBets(activeOnly bool, opts domain.ListOpts) []domain.Bet {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]uint64, 0, len(l.bets))
	for id, b := range l.bets {
		if activeOnly && !b.Active {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if opts.Offset > 0 {
		if opts.Offset >= len(ids) {
			return nil
		}
		ids = ids[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(ids) {
		ids = ids[:opts.Limit]
	}

	out := make([]domain.Bet, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.bets[id])
	}
	return out
}

// State returns a snapshot of the shared pool aggregates.
func (l *Ledger) State() domain.PoolState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.PoolState{
		LockedLiquidity: l.pool.Locked(),
		NextBetID:       l.nextBetID,
	}
}

// Config returns a copy of the current engine configuration.
func (l *Ledger) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// persist writes through to the archive, logging failures instead of
// failing the operation: the in-memory ledger stays authoritative.
func (l *Ledger) persist(ctx context.Context, fn func(domain.BetArchive) error) {
	if l.archive == nil {
		return
	}
	if err := fn(l.archive); err != nil {
		l.logger.WarnContext(ctx, "bet archive write failed",
			slog.String("error", err.Error()),
		)
	}
}

// publish emits a lifecycle event on the bus, logging delivery failures.
func (l *Ledger) publish(ctx context.Context, channel string, evt any) {
	if l.bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := l.bus.Publish(ctx, channel, payload); err != nil {
		l.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
