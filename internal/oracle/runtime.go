package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/0xfraan/leverbet/internal/domain"
)

// executeTimeout bounds a single settlement computation, including both
// price fetches.
const executeTimeout = 30 * time.Second

// DeliverFunc receives a signed finalization command. The runtime calls it
// out of band after a triggered computation succeeds; the wired
// implementation submits the command to the ledger's settlement entry
// point.
type DeliverFunc func(ctx context.Context, cmd *SettleCommand) error

// request is one registered oracle request.
type request struct {
	params    []byte
	authority common.Address
}

// Runtime is an in-process oracle network: it keeps the registry of
// submitted requests, runs triggered computations asynchronously, and
// exposes the attestation needed by the ledger's capability check. Submit
// and Trigger are fire-and-forget; there is deliberately no guard against
// re-triggering a request before a prior computation completes.
type Runtime struct {
	mu       sync.Mutex
	requests map[uuid.UUID]request

	computer *Computer
	deliver  DeliverFunc
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewRuntime creates a Runtime around the given computer. SetDeliver must
// be called before any request is triggered.
func NewRuntime(computer *Computer, logger *slog.Logger) *Runtime {
	return &Runtime{
		requests: make(map[uuid.UUID]request),
		computer: computer,
		logger:   logger.With(slog.String("component", "oracle_runtime")),
	}
}

// SetDeliver installs the finalization command sink. It exists as a setter
// because the ledger and the runtime reference each other: the ledger
// submits requests to the runtime, the runtime delivers commands back.
func (r *Runtime) SetDeliver(deliver DeliverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliver = deliver
}

// Submit registers request params under a fresh handle, bound to the given
// authority.
func (r *Runtime) Submit(_ context.Context, params []byte, authority common.Address) (uuid.UUID, error) {
	id := uuid.New()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[id] = request{params: params, authority: authority}
	return id, nil
}

// Trigger starts an asynchronous settlement computation for the request.
// Errors inside the computation are logged and dropped; the bet stays
// active and the request can be triggered again.
func (r *Runtime) Trigger(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	req, ok := r.requests[id]
	deliver := r.deliver
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("oracle: request %s: %w", id, domain.ErrNotFound)
	}
	if deliver == nil {
		return fmt.Errorf("oracle: runtime has no delivery sink")
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		// Detached context: the computation outlives the trigger call.
		ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
		defer cancel()

		cmd, err := r.computer.Execute(ctx, id, req.params)
		if err != nil {
			r.logger.WarnContext(ctx, "execution attempt failed",
				slog.String("request_id", id.String()),
				slog.String("error", err.Error()),
			)
			return
		}

		if err := deliver(ctx, cmd); err != nil {
			r.logger.WarnContext(ctx, "finalization command rejected",
				slog.String("request_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	return nil
}

// Attestation resolves the enclave signer and bound authority for a
// request handle.
func (r *Runtime) Attestation(_ context.Context, id uuid.UUID) (domain.Attestation, error) {
	r.mu.Lock()
	req, ok := r.requests[id]
	r.mu.Unlock()

	if !ok {
		return domain.Attestation{}, fmt.Errorf("oracle: request %s: %w", id, domain.ErrNotFound)
	}
	return domain.Attestation{
		Signer:    r.computer.signer.Address(),
		Authority: req.authority,
	}, nil
}

// Wait blocks until all in-flight computations finish. Used on shutdown.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

// Compile-time interface check.
var _ domain.OracleClient = (*Runtime)(nil)
