package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xfraan/leverbet/internal/domain"
)

// BetStore implements domain.BetArchive using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

var _ domain.BetArchive = (*BetStore)(nil)

// Insert records a freshly placed bet.
func (s *BetStore) Insert(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (
			bet_id, user_addr, user_token, pair, amount, payout,
			is_long, start_time, end_time, request_id, active, status
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, TRUE, 'active'
		)`

	_, err := s.pool.Exec(ctx, query,
		int64(b.ID), b.User.Hex(), b.UserToken.Hex(), b.Pair.String(),
		int64(b.Amount), int64(b.Payout),
		b.IsLong, int64(b.StartTime), int64(b.EndTime), b.RequestID,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert bet %d: %w", b.ID, err)
	}
	return nil
}

// MarkSettled records the terminal settled state: both prices, the final
// payout and whether the bet won.
func (s *BetStore) MarkSettled(ctx context.Context, b domain.Bet, won bool) error {
	const query = `
		UPDATE bets SET
			open_price = $1, close_price = $2, payout = $3, won = $4,
			active = FALSE, status = 'settled',
			settled_at = NOW(), updated_at = NOW()
		WHERE bet_id = $5`

	tag, err := s.pool.Exec(ctx, query,
		int64(b.OpenPrice), int64(b.ClosePrice), int64(b.Payout), won, int64(b.ID))
	if err != nil {
		return fmt.Errorf("postgres: settle bet %d: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkCancelled records the terminal cancelled state.
func (s *BetStore) MarkCancelled(ctx context.Context, b domain.Bet) error {
	const query = `
		UPDATE bets SET
			active = FALSE, status = 'cancelled',
			cancelled_at = NOW(), updated_at = NOW()
		WHERE bet_id = $1`

	tag, err := s.pool.Exec(ctx, query, int64(b.ID))
	if err != nil {
		return fmt.Errorf("postgres: cancel bet %d: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const betSelectCols = `bet_id, user_addr, user_token, pair, amount, payout,
	is_long, start_time, end_time, open_price, close_price, request_id, active`

func scanBetFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Bet, error) {
	var b domain.Bet
	var id, amount, payout, startTime, endTime, openPrice, closePrice int64
	var userAddr, userToken, pair string

	err := scanner.Scan(
		&id, &userAddr, &userToken, &pair, &amount, &payout,
		&b.IsLong, &startTime, &endTime, &openPrice, &closePrice,
		&b.RequestID, &b.Active,
	)
	if err != nil {
		return domain.Bet{}, err
	}

	b.ID = uint64(id)
	b.Amount = uint64(amount)
	b.Payout = uint64(payout)
	b.StartTime = uint64(startTime)
	b.EndTime = uint64(endTime)
	b.OpenPrice = uint64(openPrice)
	b.ClosePrice = uint64(closePrice)
	b.User = common.HexToAddress(userAddr)
	b.UserToken = common.HexToAddress(userToken)

	p, err := domain.ParsePair(pair)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: bet %d pair: %w", b.ID, err)
	}
	b.Pair = p

	return b, nil
}

func scanBetRows(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBetFromRow(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// GetByID retrieves a single bet by id.
func (s *BetStore) GetByID(ctx context.Context, betID uint64) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE bet_id = $1`, int64(betID))

	b, err := scanBetFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %d: %w", betID, err)
	}
	return b, nil
}

// ListActive returns active bets ordered by id.
func (s *BetStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE active ORDER BY bet_id LIMIT $1 OFFSET $2`,
		limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active bets: %w", err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active bets: %w", err)
	}
	return bets, nil
}

// ListTerminalBefore returns settled or cancelled bets whose end time is
// strictly before the cutoff.
func (s *BetStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE NOT active AND end_time < $1 ORDER BY bet_id`,
		before.Unix())
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal bets: %w", err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal bets: %w", err)
	}
	return bets, nil
}
