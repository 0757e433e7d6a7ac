package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/0xfraan/leverbet/internal/domain"
)

type feedPoint struct {
	price uint64
	expo  int32
	err   error
}

type mockFeed struct {
	points map[uint64]feedPoint // keyed by timestamp
	calls  int
}

func (m *mockFeed) GetPrice(_ context.Context, pair string, timestamp uint64) (uint64, int32, error) {
	m.calls++
	pt, ok := m.points[timestamp]
	if !ok {
		return 0, 0, domain.ErrGetPrice
	}
	return pt.price, pt.expo, pt.err
}

func newTestComputer(t *testing.T, feed *mockFeed) (*Computer, *EnclaveSigner) {
	t.Helper()
	signer, err := NewEnclaveSigner(testKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	function := common.HexToAddress("0x7777777777777777777777777777777777777777")
	transferCap := common.HexToAddress("0x8888888888888888888888888888888888888888")
	return NewComputer(feed, signer, function, transferCap, logger), signer
}

func TestComputerExecute(t *testing.T) {
	params := testParams()
	feed := &mockFeed{points: map[uint64]feedPoint{
		params.StartTime: {price: 100_000, expo: -8},
		params.EndTime:   {price: 150_000, expo: -8},
	}}
	c, signer := newTestComputer(t, feed)

	requestID := uuid.New()
	cmd, err := c.Execute(context.Background(), requestID, params.Encode())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	betID, openPrice, closePrice, err := DecodeSettleInstruction(cmd.Instruction)
	if err != nil {
		t.Fatalf("decode instruction: %v", err)
	}
	if betID != params.BetID || openPrice != 100_000 || closePrice != 150_000 {
		t.Fatalf("instruction = %d/%d/%d", betID, openPrice, closePrice)
	}

	if cmd.RequestID != requestID {
		t.Fatal("command carries the wrong request handle")
	}
	if cmd.Signer != signer.Address() {
		t.Fatal("command does not declare the enclave signer")
	}
	recovered, err := RecoverSigner(cmd.Instruction, cmd.Signature)
	if err != nil || recovered != signer.Address() {
		t.Fatalf("signature does not recover to the enclave signer: %v", err)
	}

	a := cmd.Accounts
	if a.Bet != params.Bet || a.UserToken != params.UserToken || a.Escrow != params.Escrow {
		t.Fatalf("ledger-side accounts = %+v", a)
	}
	if a.State != StateAddress(params.ProgramID) || a.Config != ConfigAddress(params.ProgramID) {
		t.Fatal("derived program accounts mismatch")
	}
	if a.Request != RequestAddress(requestID) || a.EnclaveSigner != signer.Address() {
		t.Fatal("request identity accounts mismatch")
	}
}

func TestComputerExecuteExpoMismatch(t *testing.T) {
	params := testParams()
	feed := &mockFeed{points: map[uint64]feedPoint{
		params.StartTime: {price: 100_000, expo: -8},
		params.EndTime:   {price: 150_000, expo: -6},
	}}
	c, _ := newTestComputer(t, feed)

	_, err := c.Execute(context.Background(), uuid.New(), params.Encode())
	if !errors.Is(err, domain.ErrPriceExpo) {
		t.Fatalf("got %v, want ErrPriceExpo", err)
	}
}

func TestComputerExecutePriceFetchFailure(t *testing.T) {
	params := testParams()
	feed := &mockFeed{points: map[uint64]feedPoint{
		params.StartTime: {price: 100_000, expo: -8},
	}}
	c, _ := newTestComputer(t, feed)

	_, err := c.Execute(context.Background(), uuid.New(), params.Encode())
	if !errors.Is(err, domain.ErrGetPrice) {
		t.Fatalf("got %v, want ErrGetPrice", err)
	}
}

func TestComputerExecuteBadParams(t *testing.T) {
	c, _ := newTestComputer(t, &mockFeed{})
	_, err := c.Execute(context.Background(), uuid.New(), []byte("PID=junk"))
	if !errors.Is(err, domain.ErrArgParse) {
		t.Fatalf("got %v, want ErrArgParse", err)
	}
	if c.feed.(*mockFeed).calls != 0 {
		t.Fatal("feed consulted for unparseable params")
	}
}
