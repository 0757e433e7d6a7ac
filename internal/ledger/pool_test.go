package ledger

import (
	"errors"
	"testing"

	"github.com/0xfraan/leverbet/internal/domain"
)

func TestPoolReserveRelease(t *testing.T) {
	p := NewPool()

	if err := p.Reserve(100, 250); err != nil {
		t.Fatalf("reserve 100/250: %v", err)
	}
	if err := p.Reserve(150, 250); err != nil {
		t.Fatalf("reserve 150/250: %v", err)
	}
	if got := p.Locked(); got != 250 {
		t.Fatalf("locked = %d, want 250", got)
	}

	if err := p.Reserve(1, 250); !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Fatalf("reserve past ceiling: got %v, want ErrInsufficientLiquidity", err)
	}

	p.Release(150)
	if got := p.Locked(); got != 100 {
		t.Fatalf("locked after release = %d, want 100", got)
	}
	if err := p.Reserve(150, 250); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestPoolReserveExactCeiling(t *testing.T) {
	p := NewPool()

	if err := p.Reserve(250, 250); err != nil {
		t.Fatalf("reserve up to ceiling: %v", err)
	}
	if err := p.Reserve(0, 250); err != nil {
		t.Fatalf("zero reserve at ceiling: %v", err)
	}
}

func TestPoolReserveLoweredCeiling(t *testing.T) {
	p := NewPool()

	if err := p.Reserve(200, 250); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Ceiling dropped below what is already locked: nothing more fits, and
	// the subtraction must not wrap.
	if err := p.Reserve(1, 100); !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Fatalf("reserve under lowered ceiling: got %v, want ErrInsufficientLiquidity", err)
	}
}

func TestPoolReleaseClampsAtZero(t *testing.T) {
	p := NewPool()

	if err := p.Reserve(50, 250); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	p.Release(80)
	if got := p.Locked(); got != 0 {
		t.Fatalf("locked after over-release = %d, want 0", got)
	}
}
