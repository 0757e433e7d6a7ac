package domain

import (
	"errors"
	"testing"
)

func TestParsePair(t *testing.T) {
	p, err := ParsePair("BTCUSDXX")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.String() != "BTCUSDXX" {
		t.Fatalf("string = %q", p.String())
	}

	for _, bad := range []string{"", "BTC", "BTCUSD", "BTCUSDXXX"} {
		if _, err := ParsePair(bad); !errors.Is(err, ErrInvalidPair) {
			t.Fatalf("%q: got %v, want ErrInvalidPair", bad, err)
		}
	}
}

func TestBetAddress(t *testing.T) {
	if BetAddress(0) == BetAddress(1) {
		t.Fatal("distinct bet ids share an address")
	}
	if BetAddress(7) != BetAddress(7) {
		t.Fatal("derivation is not deterministic")
	}
	b := Bet{ID: 7}
	if b.Address() != BetAddress(7) {
		t.Fatal("bet address does not match its id derivation")
	}
}

func TestWon(t *testing.T) {
	cases := []struct {
		name        string
		isLong      bool
		open, close uint64
		want        bool
	}{
		{"long up", true, 100, 150, true},
		{"long down", true, 150, 100, false},
		{"long flat", true, 100, 100, true},
		{"short down", false, 150, 100, true},
		{"short up", false, 100, 150, false},
		{"short flat", false, 100, 100, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := Bet{IsLong: tc.isLong}
			if got := b.Won(tc.open, tc.close); got != tc.want {
				t.Fatalf("won = %v, want %v", got, tc.want)
			}
		})
	}
}
