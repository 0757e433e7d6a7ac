package domain

import "errors"

var (
	// Validation errors: caller-correctable, rejected before any state change.
	ErrInvalidAmount    = errors.New("bet amount is not within the permitted range")
	ErrInvalidInterval  = errors.New("bet interval is not within the permitted range")
	ErrInvalidPair      = errors.New("pair is not accepted")
	ErrInvalidTimestamp = errors.New("timestamp is not greater than bet end time")
	ErrMaxPairsExceeded = errors.New("exceeded max amount of pairs to store")

	// State errors: the bet already reached a terminal state.
	ErrInactiveBet = errors.New("bet is not active")

	// Resource errors: the caller may retry once capacity frees up.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// Capability errors.
	ErrUnauthorized = errors.New("unauthorized caller")

	// Oracle-side errors: abort the execution attempt, bet stays active.
	ErrArgParse  = errors.New("request params parse failed")
	ErrGetPrice  = errors.New("price fetch failed")
	ErrPriceExpo = errors.New("open/close price exponents differ")

	ErrNotFound = errors.New("not found")
)
