package token

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xfraan/leverbet/internal/domain"
)

func newTestBook() *Book {
	return NewBook(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTransfer(t *testing.T) {
	b := newTestBook()
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")

	b.Credit(alice, 100)
	if err := b.Transfer(context.Background(), alice, bob, alice, 60); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := b.Balance(alice); got != 40 {
		t.Fatalf("alice = %d, want 40", got)
	}
	if got := b.Balance(bob); got != 60 {
		t.Fatalf("bob = %d, want 60", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	b := newTestBook()
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")

	b.Credit(alice, 10)
	err := b.Transfer(context.Background(), alice, bob, alice, 11)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}
	if b.Balance(alice) != 10 || b.Balance(bob) != 0 {
		t.Fatal("failed transfer must not move funds")
	}
}

func TestTransferUnknownAccount(t *testing.T) {
	b := newTestBook()
	ghost := common.HexToAddress("0x09")
	bob := common.HexToAddress("0x02")

	if err := b.Transfer(context.Background(), ghost, bob, ghost, 1); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}
	// Zero-amount moves succeed even from an empty account.
	if err := b.Transfer(context.Background(), ghost, bob, ghost, 0); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
}

func TestCreditAccumulates(t *testing.T) {
	b := newTestBook()
	alice := common.HexToAddress("0x01")

	b.Credit(alice, 5)
	b.Credit(alice, 7)
	if got := b.Balance(alice); got != 12 {
		t.Fatalf("balance = %d, want 12", got)
	}
}
