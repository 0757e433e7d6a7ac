package oracle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/0xfraan/leverbet/internal/domain"
)

func TestSettleInstructionRoundTrip(t *testing.T) {
	data := EncodeSettleInstruction(7, 100_000, 150_000)
	if len(data) != SettleInstructionLen {
		t.Fatalf("instruction length = %d, want %d", len(data), SettleInstructionLen)
	}

	betID, openPrice, closePrice, err := DecodeSettleInstruction(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if betID != 7 || openPrice != 100_000 || closePrice != 150_000 {
		t.Fatalf("decoded %d/%d/%d", betID, openPrice, closePrice)
	}
}

func TestSettleInstructionLayout(t *testing.T) {
	data := EncodeSettleInstruction(1, 2, 3)

	sel := sha256.Sum256([]byte("global:settle_bet"))
	if !bytes.Equal(data[:8], sel[:8]) {
		t.Fatal("selector does not tag the settle instruction")
	}
	if binary.LittleEndian.Uint64(data[8:16]) != 1 {
		t.Fatal("bet id is not little-endian at offset 8")
	}
	if binary.LittleEndian.Uint64(data[16:24]) != 2 {
		t.Fatal("open price is not little-endian at offset 16")
	}
	if binary.LittleEndian.Uint64(data[24:32]) != 3 {
		t.Fatal("close price is not little-endian at offset 24")
	}
}

func TestDecodeSettleInstructionRejectsMalformed(t *testing.T) {
	if _, _, _, err := DecodeSettleInstruction(make([]byte, SettleInstructionLen-1)); !errors.Is(err, domain.ErrArgParse) {
		t.Fatalf("short input: got %v, want ErrArgParse", err)
	}
	if _, _, _, err := DecodeSettleInstruction(make([]byte, SettleInstructionLen)); !errors.Is(err, domain.ErrArgParse) {
		t.Fatalf("unknown selector: got %v, want ErrArgParse", err)
	}
}

func TestDerivedAddresses(t *testing.T) {
	program := common.HexToAddress("0x5555555555555555555555555555555555555555")

	addrs := map[string]common.Address{
		"state":    StateAddress(program),
		"config":   ConfigAddress(program),
		"function": FunctionAddress(program),
		"transfer": TransferCapAddress(program),
		"bet":      domain.BetAddress(0),
	}
	seen := make(map[common.Address]string)
	for name, addr := range addrs {
		if addr == (common.Address{}) {
			t.Fatalf("%s address is zero", name)
		}
		if prev, ok := seen[addr]; ok {
			t.Fatalf("%s and %s derive the same address", name, prev)
		}
		seen[addr] = name
	}

	if StateAddress(program) != StateAddress(program) {
		t.Fatal("derivation is not deterministic")
	}
	other := common.HexToAddress("0x6666666666666666666666666666666666666666")
	if StateAddress(program) == StateAddress(other) {
		t.Fatal("different programs share a state address")
	}

	id := uuid.New()
	if RequestAddress(id) != RequestAddress(id) {
		t.Fatal("request derivation is not deterministic")
	}
	if RequestAddress(id) == RequestAddress(uuid.New()) {
		t.Fatal("distinct requests share an address")
	}
}
