package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/0xfraan/leverbet/internal/domain"
)

// Computer is the oracle-side settlement logic: it decodes request params,
// fetches the open and close prices, derives the outcome inputs, and emits
// a signed finalization command. It never touches ledger state; a failed
// attempt leaves the bet active and re-triggerable.
type Computer struct {
	feed        domain.PriceFeed
	signer      *EnclaveSigner
	function    common.Address
	transferCap common.Address
	logger      *slog.Logger
}

// NewComputer creates a Computer. function is the oracle computation
// identity and transferCap the payment-transfer capability identity, both
// carried read-only in the command's account list.
func NewComputer(
	feed domain.PriceFeed,
	signer *EnclaveSigner,
	function common.Address,
	transferCap common.Address,
	logger *slog.Logger,
) *Computer {
	return &Computer{
		feed:        feed,
		signer:      signer,
		function:    function,
		transferCap: transferCap,
		logger:      logger.With(slog.String("component", "oracle_computer")),
	}
}

// Execute runs one settlement computation for a request. The two price
// fetches must agree on the decimal exponent; a mismatch aborts with
// domain.ErrPriceExpo so the raw fixed-point values stay comparable.
func (c *Computer) Execute(ctx context.Context, requestID uuid.UUID, rawParams []byte) (*SettleCommand, error) {
	params, err := DecodeRequestParams(rawParams)
	if err != nil {
		return nil, err
	}

	openPrice, openExpo, err := c.feed.GetPrice(ctx, params.Pair, params.StartTime)
	if err != nil {
		return nil, fmt.Errorf("oracle: open price %s@%d: %w", params.Pair, params.StartTime, err)
	}
	closePrice, closeExpo, err := c.feed.GetPrice(ctx, params.Pair, params.EndTime)
	if err != nil {
		return nil, fmt.Errorf("oracle: close price %s@%d: %w", params.Pair, params.EndTime, err)
	}

	if openExpo != closeExpo {
		return nil, fmt.Errorf("oracle: expo %d vs %d: %w", openExpo, closeExpo, domain.ErrPriceExpo)
	}

	instruction := EncodeSettleInstruction(params.BetID, openPrice, closePrice)
	signature, err := c.signer.SignInstruction(instruction)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "settlement computed",
		slog.Uint64("bet_id", params.BetID),
		slog.String("pair", params.Pair),
		slog.Uint64("open_price", openPrice),
		slog.Uint64("close_price", closePrice),
		slog.Int("expo", int(openExpo)),
	)

	return &SettleCommand{
		Instruction: instruction,
		Accounts: SettleAccounts{
			Bet:           params.Bet,
			State:         StateAddress(params.ProgramID),
			Config:        ConfigAddress(params.ProgramID),
			UserToken:     params.UserToken,
			Escrow:        params.Escrow,
			Function:      c.function,
			Request:       RequestAddress(requestID),
			EnclaveSigner: c.signer.Address(),
			TransferCap:   c.transferCap,
		},
		RequestID: requestID,
		Signer:    c.signer.Address(),
		Signature: signature,
	}, nil
}
