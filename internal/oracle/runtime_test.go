package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/0xfraan/leverbet/internal/domain"
)

func TestRuntimeSubmitTriggerDeliver(t *testing.T) {
	params := testParams()
	feed := &mockFeed{points: map[uint64]feedPoint{
		params.StartTime: {price: 100_000, expo: -8},
		params.EndTime:   {price: 150_000, expo: -8},
	}}
	computer, signer := newTestComputer(t, feed)
	rt := NewRuntime(computer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	delivered := make(chan *SettleCommand, 1)
	rt.SetDeliver(func(_ context.Context, cmd *SettleCommand) error {
		delivered <- cmd
		return nil
	})

	authority := common.HexToAddress("0x1111111111111111111111111111111111111111")
	id, err := rt.Submit(context.Background(), params.Encode(), authority)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	att, err := rt.Attestation(context.Background(), id)
	if err != nil {
		t.Fatalf("attestation: %v", err)
	}
	if att.Signer != signer.Address() || att.Authority != authority {
		t.Fatalf("attestation = %+v", att)
	}

	if err := rt.Trigger(context.Background(), id); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	select {
	case cmd := <-delivered:
		if cmd.RequestID != id {
			t.Fatalf("delivered request %s, want %s", cmd.RequestID, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no command delivered")
	}
	rt.Wait()
}

func TestRuntimeTriggerUnknownRequest(t *testing.T) {
	computer, _ := newTestComputer(t, &mockFeed{})
	rt := NewRuntime(computer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rt.SetDeliver(func(context.Context, *SettleCommand) error { return nil })

	if err := rt.Trigger(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := rt.Attestation(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("attestation: got %v, want ErrNotFound", err)
	}
}

func TestRuntimeFailedExecutionDropsCommand(t *testing.T) {
	// No price points: the computation fails and nothing is delivered.
	computer, _ := newTestComputer(t, &mockFeed{})
	rt := NewRuntime(computer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	delivered := make(chan *SettleCommand, 1)
	rt.SetDeliver(func(_ context.Context, cmd *SettleCommand) error {
		delivered <- cmd
		return nil
	})

	id, err := rt.Submit(context.Background(), testParams().Encode(), common.Address{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := rt.Trigger(context.Background(), id); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	rt.Wait()

	select {
	case <-delivered:
		t.Fatal("failed execution must not deliver a command")
	default:
	}

	// The request survives the failed attempt and can be triggered again.
	if err := rt.Trigger(context.Background(), id); err != nil {
		t.Fatalf("re-trigger: %v", err)
	}
	rt.Wait()
}

func TestRuntimeTriggerWithoutSink(t *testing.T) {
	computer, _ := newTestComputer(t, &mockFeed{})
	rt := NewRuntime(computer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := rt.Submit(context.Background(), testParams().Encode(), common.Address{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := rt.Trigger(context.Background(), id); err == nil {
		t.Fatal("expected error with no delivery sink installed")
	}
}
