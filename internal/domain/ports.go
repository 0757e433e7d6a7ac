package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// TokenTransfer is the external token-movement capability. The engine never
// holds balances itself; it instructs the capability to move the stake into
// escrow and payouts or refunds back out. authority identifies on whose
// behalf the transfer is signed (the user for stakes, the pool config
// identity for payouts and refunds).
type TokenTransfer interface {
	Transfer(ctx context.Context, from, to, authority common.Address, amount uint64) error
}

// PriceFeed returns a historical price and its decimal exponent for a pair
// at a given unix timestamp. It fails with ErrGetPrice when the pair is
// unsupported or the feed has no data at that time.
type PriceFeed interface {
	GetPrice(ctx context.Context, pair string, timestamp uint64) (price uint64, expo int32, err error)
}

// Attestation describes the oracle network's binding for one request: the
// enclave signer whose signature finalization commands must carry, and the
// authority (bet record address) the request was submitted under.
type Attestation struct {
	Signer    common.Address
	Authority common.Address
}

// OracleClient is the request-lifecycle surface of the oracle network.
// Submit and Trigger are fire-and-forget; the resulting finalization
// command arrives out of band through the settlement entry point.
type OracleClient interface {
	// Submit registers encoded request params bound to the given authority
	// and returns the request handle.
	Submit(ctx context.Context, params []byte, authority common.Address) (uuid.UUID, error)
	// Trigger authorizes execution of a previously submitted request.
	Trigger(ctx context.Context, id uuid.UUID) error
	// Attestation resolves the binding for a request handle.
	Attestation(ctx context.Context, id uuid.UUID) (Attestation, error)
}
