package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/0xfraan/leverbet/internal/domain"
)

// BlobWriter is the narrow upload interface required by the archiver.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver serializes settled and cancelled bets to JSONL and uploads the
// result to S3 for cold storage. Deletion of archived rows from the primary
// store is intentionally not performed here; that is a separate, explicit
// step to be executed after the archive has been verified.
type Archiver struct {
	writer  BlobWriter
	archive domain.BetArchive
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer BlobWriter, archive domain.BetArchive) *Archiver {
	return &Archiver{
		writer:  writer,
		archive: archive,
	}
}

// betRecord is the archived JSONL row shape.
type betRecord struct {
	BetID      uint64 `json:"bet_id"`
	User       string `json:"user"`
	UserToken  string `json:"user_token"`
	Pair       string `json:"pair"`
	Amount     uint64 `json:"amount"`
	Payout     uint64 `json:"payout"`
	IsLong     bool   `json:"is_long"`
	StartTime  uint64 `json:"start_time"`
	EndTime    uint64 `json:"end_time"`
	OpenPrice  uint64 `json:"open_price"`
	ClosePrice uint64 `json:"close_price"`
	RequestID  string `json:"request_id"`
}

// ArchiveBets queries all terminal bets ending before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at archive/bets/YYYY-MM.jsonl.
// The count of archived records is returned.
func (a *Archiver) ArchiveBets(ctx context.Context, before time.Time) (int64, error) {
	bets, err := a.archive.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bets query: %w", err)
	}
	if len(bets) == 0 {
		return 0, nil
	}

	records := make([]betRecord, 0, len(bets))
	for _, b := range bets {
		records = append(records, betRecord{
			BetID:      b.ID,
			User:       b.User.Hex(),
			UserToken:  b.UserToken.Hex(),
			Pair:       b.Pair.String(),
			Amount:     b.Amount,
			Payout:     b.Payout,
			IsLong:     b.IsLong,
			StartTime:  b.StartTime,
			EndTime:    b.EndTime,
			OpenPrice:  b.OpenPrice,
			ClosePrice: b.ClosePrice,
			RequestID:  b.RequestID.String(),
		})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bets marshal: %w", err)
	}

	path := archivePath("bets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive bets upload: %w", err)
	}

	return int64(len(records)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/bets/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
