package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xfraan/leverbet/internal/domain"
	"github.com/0xfraan/leverbet/internal/ledger"
)

// BetLedger defines the methods that the bet handler requires from the
// ledger.
type BetLedger interface {
	PlaceBet(ctx context.Context, p ledger.PlaceBetParams) (domain.Bet, error)
	RequestExecution(ctx context.Context, betID uint64) error
	Cancel(ctx context.Context, betID uint64, caller common.Address) error
	Bet(betID uint64) (domain.Bet, error)
	ListBets(activeOnly bool, opts domain.ListOpts) []domain.Bet
}

// BetHandler serves bet lifecycle HTTP endpoints.
type BetHandler struct {
	ledger BetLedger
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given ledger and logger.
func NewBetHandler(l BetLedger, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		ledger: l,
		logger: logger,
	}
}

// betView is the JSON representation of a bet.
type betView struct {
	ID         uint64 `json:"id"`
	User       string `json:"user"`
	UserToken  string `json:"user_token"`
	Pair       string `json:"pair"`
	Amount     uint64 `json:"amount"`
	Payout     uint64 `json:"payout"`
	IsLong     bool   `json:"is_long"`
	Active     bool   `json:"active"`
	StartTime  uint64 `json:"start_time"`
	EndTime    uint64 `json:"end_time"`
	OpenPrice  uint64 `json:"open_price"`
	ClosePrice uint64 `json:"close_price"`
	RequestID  string `json:"request_id"`
}

func toBetView(b domain.Bet) betView {
	return betView{
		ID:         b.ID,
		User:       b.User.Hex(),
		UserToken:  b.UserToken.Hex(),
		Pair:       b.Pair.String(),
		Amount:     b.Amount,
		Payout:     b.Payout,
		IsLong:     b.IsLong,
		Active:     b.Active,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		OpenPrice:  b.OpenPrice,
		ClosePrice: b.ClosePrice,
		RequestID:  b.RequestID.String(),
	}
}

// placeBetRequest is the JSON body for placing a bet.
type placeBetRequest struct {
	User      string `json:"user"`
	UserToken string `json:"user_token"`
	Amount    uint64 `json:"amount"`
	Pair      string `json:"pair"`
	Interval  uint64 `json:"interval"`
	IsLong    bool   `json:"is_long"`
}

// listBetsResponse wraps the list bets response.
type listBetsResponse struct {
	Bets []betView `json:"bets"`
}

// ListBets returns bets, optionally filtered to active ones.
// GET /api/bets?active=true&limit=50&offset=0
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	opts := parseListOpts(r)

	bets := h.ledger.ListBets(activeOnly, opts)

	views := make([]betView, 0, len(bets))
	for _, b := range bets {
		views = append(views, toBetView(b))
	}

	writeJSON(w, http.StatusOK, listBetsResponse{Bets: views})
}

// GetBet returns a single bet by id.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	b, err := h.ledger.Bet(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bet not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get bet failed",
			slog.Uint64("bet_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get bet")
		return
	}

	writeJSON(w, http.StatusOK, toBetView(b))
}

// PlaceBet creates a new bet from a JSON body.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if !common.IsHexAddress(req.User) {
		writeError(w, http.StatusBadRequest, "user must be a valid address")
		return
	}
	if !common.IsHexAddress(req.UserToken) {
		writeError(w, http.StatusBadRequest, "user_token must be a valid address")
		return
	}
	pair, err := domain.ParsePair(req.Pair)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pair: "+req.Pair)
		return
	}

	b, err := h.ledger.PlaceBet(r.Context(), ledger.PlaceBetParams{
		User:      common.HexToAddress(req.User),
		UserToken: common.HexToAddress(req.UserToken),
		Amount:    req.Amount,
		Pair:      pair,
		Interval:  req.Interval,
		IsLong:    req.IsLong,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "amount outside accepted bounds")
		case errors.Is(err, domain.ErrInvalidInterval):
			writeError(w, http.StatusBadRequest, "interval outside accepted window")
		case errors.Is(err, domain.ErrInvalidPair):
			writeError(w, http.StatusBadRequest, "pair is not accepted")
		case errors.Is(err, domain.ErrInsufficientLiquidity):
			writeError(w, http.StatusConflict, "insufficient pool liquidity")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place bet failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place bet")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toBetView(b))
}

// RequestExecution triggers oracle settlement for an expired bet.
// POST /api/bets/{id}/execute
func (h *BetHandler) RequestExecution(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	if err := h.ledger.RequestExecution(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "bet not found")
		case errors.Is(err, domain.ErrInvalidTimestamp):
			writeError(w, http.StatusConflict, "bet has not expired yet")
		case errors.Is(err, domain.ErrInactiveBet):
			writeError(w, http.StatusConflict, "bet is no longer active")
		default:
			h.logger.ErrorContext(r.Context(), "handler: request execution failed",
				slog.Uint64("bet_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to request execution")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"bet_id": id, "status": "execution_requested"})
}

// cancelRequest is the JSON body for cancelling a bet.
type cancelRequest struct {
	Caller string `json:"caller"`
}

// Cancel refunds a bet abandoned by the oracle.
// POST /api/bets/{id}/cancel
func (h *BetHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "caller must be a valid address")
		return
	}

	if err := h.ledger.Cancel(r.Context(), id, common.HexToAddress(req.Caller)); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "bet not found")
		case errors.Is(err, domain.ErrInactiveBet):
			writeError(w, http.StatusConflict, "bet is no longer active")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "only the bettor may cancel")
		case errors.Is(err, domain.ErrInvalidTimestamp):
			writeError(w, http.StatusConflict, "cancel buffer has not elapsed")
		default:
			h.logger.ErrorContext(r.Context(), "handler: cancel bet failed",
				slog.Uint64("bet_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to cancel bet")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bet_id": id, "status": "cancelled"})
}
