// Package oracle implements both sides of the settlement round trip: the
// request parameter codec shared by the ledger and the oracle process, the
// finalization command wire format, the enclave-signed settlement
// computation, and an in-process request runtime.
package oracle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xfraan/leverbet/internal/domain"
)

// RequestParams are the oracle request parameters, carried as a flat
// KEY=value text encoding. Values must not contain ',' or '='; there is no
// escaping on the wire.
type RequestParams struct {
	ProgramID common.Address
	BetID     uint64
	Pair      string
	StartTime uint64
	EndTime   uint64
	Bet       common.Address
	UserToken common.Address
	Escrow    common.Address
}

// Encode serializes the params as comma-joined KEY=value pairs. All eight
// keys are always produced.
func (p RequestParams) Encode() []byte {
	s := fmt.Sprintf(
		"PID=%s,BET_ID=%d,PAIR=%s,START_TIME=%d,END_TIME=%d,BET=%s,USER_TOKEN=%s,ESCROW=%s",
		p.ProgramID.Hex(),
		p.BetID,
		p.Pair,
		p.StartTime,
		p.EndTime,
		p.Bet.Hex(),
		p.UserToken.Hex(),
		p.Escrow.Hex(),
	)
	return []byte(s)
}

// DecodeRequestParams parses the text encoding. Key order does not matter
// and unknown keys are ignored. Missing or zero-valued PID, START_TIME,
// END_TIME, PAIR, or BET fail with domain.ErrArgParse; BET_ID, USER_TOKEN,
// and ESCROW are not required.
func DecodeRequestParams(raw []byte) (RequestParams, error) {
	var p RequestParams

	for _, field := range strings.Split(string(raw), ",") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		var err error
		switch kv[0] {
		case "PID":
			p.ProgramID, err = parseAddress(kv[1])
		case "BET_ID":
			p.BetID, err = strconv.ParseUint(kv[1], 10, 64)
		case "PAIR":
			p.Pair = kv[1]
		case "START_TIME":
			p.StartTime, err = strconv.ParseUint(kv[1], 10, 64)
		case "END_TIME":
			p.EndTime, err = strconv.ParseUint(kv[1], 10, 64)
		case "BET":
			p.Bet, err = parseAddress(kv[1])
		case "USER_TOKEN":
			p.UserToken, err = parseAddress(kv[1])
		case "ESCROW":
			p.Escrow, err = parseAddress(kv[1])
		}
		if err != nil {
			return RequestParams{}, fmt.Errorf("oracle: field %s: %w", kv[0], domain.ErrArgParse)
		}
	}

	if p.ProgramID == (common.Address{}) {
		return RequestParams{}, fmt.Errorf("oracle: PID cannot be undefined: %w", domain.ErrArgParse)
	}
	if p.StartTime == 0 {
		return RequestParams{}, fmt.Errorf("oracle: START_TIME must be greater than 0: %w", domain.ErrArgParse)
	}
	if p.EndTime == 0 {
		return RequestParams{}, fmt.Errorf("oracle: END_TIME must be greater than 0: %w", domain.ErrArgParse)
	}
	if p.Pair == "" {
		return RequestParams{}, fmt.Errorf("oracle: PAIR cannot be empty: %w", domain.ErrArgParse)
	}
	if p.Bet == (common.Address{}) {
		return RequestParams{}, fmt.Errorf("oracle: BET cannot be undefined: %w", domain.ErrArgParse)
	}

	return p, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
