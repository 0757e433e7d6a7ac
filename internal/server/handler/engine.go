package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xfraan/leverbet/internal/domain"
	"github.com/0xfraan/leverbet/internal/ledger"
)

// EngineLedger defines the state and config methods that the engine handler
// requires from the ledger.
type EngineLedger interface {
	State() domain.PoolState
	Config() ledger.Config
	AddPairs(caller common.Address, pairs []domain.Pair) error
	DeletePairs(caller common.Address, pairs []domain.Pair) error
	SetAmounts(caller common.Address, minBet, maxBet, maxUtilizedLiquidity uint64) error
}

// EngineHandler serves pool-state and engine-config HTTP endpoints.
type EngineHandler struct {
	ledger EngineLedger
	logger *slog.Logger
}

// NewEngineHandler creates an EngineHandler with the given ledger and logger.
func NewEngineHandler(l EngineLedger, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{
		ledger: l,
		logger: logger,
	}
}

// GetState returns the current pool state.
// GET /api/state
func (h *EngineHandler) GetState(w http.ResponseWriter, r *http.Request) {
	st := h.ledger.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"locked_liquidity": st.LockedLiquidity,
		"next_bet_id":      st.NextBetID,
	})
}

// configView is the JSON representation of the engine configuration.
type configView struct {
	ProgramID            string   `json:"program_id"`
	Authority            string   `json:"authority"`
	Escrow               string   `json:"escrow"`
	MinBet               uint64   `json:"min_bet"`
	MaxBet               uint64   `json:"max_bet"`
	MaxUtilizedLiquidity uint64   `json:"max_utilized_liquidity"`
	CancelBuffer         uint64   `json:"cancel_buffer"`
	MinInterval          uint64   `json:"min_interval"`
	MaxInterval          uint64   `json:"max_interval"`
	Leverage             uint64   `json:"leverage"`
	Pairs                []string `json:"pairs"`
}

// GetConfig returns the current engine configuration.
// GET /api/config
func (h *EngineHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.ledger.Config()

	pairs := make([]string, 0, cfg.NumPairs)
	for i := 0; i < cfg.NumPairs; i++ {
		pairs = append(pairs, cfg.AcceptedPairs[i].String())
	}

	writeJSON(w, http.StatusOK, configView{
		ProgramID:            cfg.ProgramID.Hex(),
		Authority:            cfg.Authority.Hex(),
		Escrow:               cfg.Escrow.Hex(),
		MinBet:               cfg.MinBet,
		MaxBet:               cfg.MaxBet,
		MaxUtilizedLiquidity: cfg.MaxUtilizedLiquidity,
		CancelBuffer:         cfg.CancelBuffer,
		MinInterval:          cfg.MinInterval,
		MaxInterval:          cfg.MaxInterval,
		Leverage:             cfg.Leverage,
		Pairs:                pairs,
	})
}

// pairsRequest is the JSON body for pair set mutations.
type pairsRequest struct {
	Caller string   `json:"caller"`
	Pairs  []string `json:"pairs"`
}

func (pr *pairsRequest) parse() (common.Address, []domain.Pair, error) {
	if !common.IsHexAddress(pr.Caller) {
		return common.Address{}, nil, errors.New("caller must be a valid address")
	}
	if len(pr.Pairs) == 0 {
		return common.Address{}, nil, errors.New("pairs must not be empty")
	}

	pairs := make([]domain.Pair, 0, len(pr.Pairs))
	for _, s := range pr.Pairs {
		p, err := domain.ParsePair(s)
		if err != nil {
			return common.Address{}, nil, errors.New("invalid pair: " + s)
		}
		pairs = append(pairs, p)
	}
	return common.HexToAddress(pr.Caller), pairs, nil
}

// AddPairs appends pairs to the accepted set.
// POST /api/config/pairs
func (h *EngineHandler) AddPairs(w http.ResponseWriter, r *http.Request) {
	h.mutatePairs(w, r, h.ledger.AddPairs)
}

// DeletePairs removes pairs from the accepted set.
// DELETE /api/config/pairs
func (h *EngineHandler) DeletePairs(w http.ResponseWriter, r *http.Request) {
	h.mutatePairs(w, r, h.ledger.DeletePairs)
}

func (h *EngineHandler) mutatePairs(
	w http.ResponseWriter,
	r *http.Request,
	op func(common.Address, []domain.Pair) error,
) {
	var req pairsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, pairs, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(caller, pairs); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "caller is not the authority")
		case errors.Is(err, domain.ErrMaxPairsExceeded):
			writeError(w, http.StatusConflict, "accepted pair set is full")
		case errors.Is(err, domain.ErrInvalidPair):
			writeError(w, http.StatusBadRequest, "pair is not in the accepted set")
		default:
			h.logger.ErrorContext(r.Context(), "handler: pair mutation failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to update pairs")
		}
		return
	}

	h.GetConfig(w, r)
}

// amountsRequest is the JSON body for amount bound mutations.
type amountsRequest struct {
	Caller               string `json:"caller"`
	MinBet               uint64 `json:"min_bet"`
	MaxBet               uint64 `json:"max_bet"`
	MaxUtilizedLiquidity uint64 `json:"max_utilized_liquidity"`
}

// SetAmounts replaces the bet amount bounds and the liquidity ceiling.
// POST /api/config/amounts
func (h *EngineHandler) SetAmounts(w http.ResponseWriter, r *http.Request) {
	var req amountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "caller must be a valid address")
		return
	}

	err := h.ledger.SetAmounts(common.HexToAddress(req.Caller),
		req.MinBet, req.MaxBet, req.MaxUtilizedLiquidity)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "caller is not the authority")
		case errors.Is(err, domain.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "amount bounds are invalid")
		default:
			h.logger.ErrorContext(r.Context(), "handler: set amounts failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to update amounts")
		}
		return
	}

	h.GetConfig(w, r)
}
