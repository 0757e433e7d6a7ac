package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/0xfraan/leverbet/internal/domain"
)

type mockWriter struct {
	path        string
	contentType string
	data        []byte
	err         error
	puts        int
}

func (m *mockWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	m.puts++
	if m.err != nil {
		return m.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.path = path
	m.contentType = contentType
	m.data = body
	return nil
}

type mockArchive struct {
	domain.BetArchive
	terminal []domain.Bet
	err      error
}

func (m *mockArchive) ListTerminalBefore(_ context.Context, _ time.Time) ([]domain.Bet, error) {
	return m.terminal, m.err
}

func terminalBet(id uint64) domain.Bet {
	pair, _ := domain.ParsePair("BTCUSDXX")
	return domain.Bet{
		ID:         id,
		Amount:     10_000_000,
		Payout:     17_000_000,
		StartTime:  1_700_000_000,
		EndTime:    1_700_003_600,
		OpenPrice:  100_000,
		ClosePrice: 150_000,
		User:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		UserToken:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Pair:       pair,
		IsLong:     true,
		RequestID:  uuid.New(),
	}
}

func TestArchiveBets(t *testing.T) {
	writer := &mockWriter{}
	archive := &mockArchive{terminal: []domain.Bet{terminalBet(0), terminalBet(1)}}
	a := NewArchiver(writer, archive)

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	n, err := a.ArchiveBets(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived = %d, want 2", n)
	}

	if writer.path != "archive/bets/2026-08.jsonl" {
		t.Fatalf("path = %q", writer.path)
	}
	if writer.contentType != "application/x-ndjson" {
		t.Fatalf("content type = %q", writer.contentType)
	}

	lines := bytes.Split(bytes.TrimSpace(writer.data), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("jsonl lines = %d, want 2", len(lines))
	}
	var rec betRecord
	if err := json.Unmarshal(lines[1], &rec); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if rec.BetID != 1 || rec.Pair != "BTCUSDXX" || rec.Payout != 17_000_000 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestArchiveBetsNothingToDo(t *testing.T) {
	writer := &mockWriter{}
	a := NewArchiver(writer, &mockArchive{})

	n, err := a.ArchiveBets(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 0 {
		t.Fatalf("archived = %d, want 0", n)
	}
	if writer.puts != 0 {
		t.Fatal("empty sweep must not upload")
	}
}

func TestArchiveBetsErrors(t *testing.T) {
	t.Run("query failure", func(t *testing.T) {
		a := NewArchiver(&mockWriter{}, &mockArchive{err: errors.New("db down")})
		if _, err := a.ArchiveBets(context.Background(), time.Now()); err == nil {
			t.Fatal("expected query error")
		}
	})

	t.Run("upload failure", func(t *testing.T) {
		writer := &mockWriter{err: errors.New("s3 down")}
		a := NewArchiver(writer, &mockArchive{terminal: []domain.Bet{terminalBet(0)}})
		if _, err := a.ArchiveBets(context.Background(), time.Now()); err == nil {
			t.Fatal("expected upload error")
		}
	})
}
