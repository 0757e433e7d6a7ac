package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/0xfraan/leverbet/internal/domain"
	"github.com/0xfraan/leverbet/internal/ledger"
)

type mockBetLedger struct {
	bets      map[uint64]domain.Bet
	placeErr  error
	execErr   error
	cancelErr error

	placed    *ledger.PlaceBetParams
	executed  []uint64
	cancelled []uint64
}

func (m *mockBetLedger) PlaceBet(_ context.Context, p ledger.PlaceBetParams) (domain.Bet, error) {
	if m.placeErr != nil {
		return domain.Bet{}, m.placeErr
	}
	m.placed = &p
	return domain.Bet{
		ID:        7,
		Amount:    p.Amount,
		Payout:    p.Amount * 1700 / domain.LeverageScale,
		User:      p.User,
		UserToken: p.UserToken,
		Pair:      p.Pair,
		IsLong:    p.IsLong,
		Active:    true,
		RequestID: uuid.New(),
	}, nil
}

func (m *mockBetLedger) RequestExecution(_ context.Context, betID uint64) error {
	if m.execErr != nil {
		return m.execErr
	}
	m.executed = append(m.executed, betID)
	return nil
}

func (m *mockBetLedger) Cancel(_ context.Context, betID uint64, _ common.Address) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, betID)
	return nil
}

func (m *mockBetLedger) Bet(betID uint64) (domain.Bet, error) {
	b, ok := m.bets[betID]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *mockBetLedger) ListBets(activeOnly bool, _ domain.ListOpts) []domain.Bet {
	var out []domain.Bet
	for _, b := range m.bets {
		if activeOnly && !b.Active {
			continue
		}
		out = append(out, b)
	}
	return out
}

func newBetMux(l BetLedger) *http.ServeMux {
	h := NewBetHandler(l, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bets", h.ListBets)
	mux.HandleFunc("POST /api/bets", h.PlaceBet)
	mux.HandleFunc("GET /api/bets/{id}", h.GetBet)
	mux.HandleFunc("POST /api/bets/{id}/execute", h.RequestExecution)
	mux.HandleFunc("POST /api/bets/{id}/cancel", h.Cancel)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPlaceBetHandler(t *testing.T) {
	m := &mockBetLedger{}
	mux := newBetMux(m)

	body := `{"user":"0x1111111111111111111111111111111111111111",
		"user_token":"0x2222222222222222222222222222222222222222",
		"amount":10000000,"pair":"BTCUSDXX","interval":3600,"is_long":true}`
	rec := doRequest(t, mux, http.MethodPost, "/api/bets", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var view struct {
		ID     uint64 `json:"id"`
		Pair   string `json:"pair"`
		Payout uint64 `json:"payout"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != 7 || view.Pair != "BTCUSDXX" || view.Payout != 17_000_000 {
		t.Fatalf("view = %+v", view)
	}
	if m.placed == nil || m.placed.Amount != 10_000_000 || !m.placed.IsLong {
		t.Fatalf("ledger params = %+v", m.placed)
	}
}

func TestPlaceBetHandlerRejections(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		placeErr error
		want     int
	}{
		{"malformed json", `{`, nil, http.StatusBadRequest},
		{"bad user", `{"user":"nope","user_token":"0x2222222222222222222222222222222222222222","pair":"BTCUSDXX"}`, nil, http.StatusBadRequest},
		{"bad pair", `{"user":"0x1111111111111111111111111111111111111111","user_token":"0x2222222222222222222222222222222222222222","pair":"BTC"}`, nil, http.StatusBadRequest},
		{"amount bounds", `{"user":"0x1111111111111111111111111111111111111111","user_token":"0x2222222222222222222222222222222222222222","pair":"BTCUSDXX"}`, domain.ErrInvalidAmount, http.StatusBadRequest},
		{"no liquidity", `{"user":"0x1111111111111111111111111111111111111111","user_token":"0x2222222222222222222222222222222222222222","pair":"BTCUSDXX"}`, domain.ErrInsufficientLiquidity, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := newBetMux(&mockBetLedger{placeErr: tc.placeErr})
			rec := doRequest(t, mux, http.MethodPost, "/api/bets", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestGetBetHandler(t *testing.T) {
	m := &mockBetLedger{bets: map[uint64]domain.Bet{
		3: {ID: 3, Amount: 10_000_000, Active: true},
	}}
	mux := newBetMux(m)

	rec := doRequest(t, mux, http.MethodGet, "/api/bets/3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/bets/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing bet status = %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/bets/notanumber", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestListBetsHandler(t *testing.T) {
	m := &mockBetLedger{bets: map[uint64]domain.Bet{
		0: {ID: 0, Active: true},
		1: {ID: 1, Active: false},
	}}
	mux := newBetMux(m)

	rec := doRequest(t, mux, http.MethodGet, "/api/bets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Bets []json.RawMessage `json:"bets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Bets) != 2 {
		t.Fatalf("bets = %d, want 2", len(resp.Bets))
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/bets?active=true", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Bets) != 1 {
		t.Fatalf("active bets = %d, want 1", len(resp.Bets))
	}
}

func TestRequestExecutionHandler(t *testing.T) {
	m := &mockBetLedger{}
	mux := newBetMux(m)

	rec := doRequest(t, mux, http.MethodPost, "/api/bets/5/execute", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(m.executed) != 1 || m.executed[0] != 5 {
		t.Fatalf("executed = %v", m.executed)
	}

	for _, tc := range []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidTimestamp, http.StatusConflict},
		{domain.ErrInactiveBet, http.StatusConflict},
	} {
		mux := newBetMux(&mockBetLedger{execErr: tc.err})
		rec := doRequest(t, mux, http.MethodPost, "/api/bets/5/execute", "")
		if rec.Code != tc.want {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestCancelHandler(t *testing.T) {
	m := &mockBetLedger{}
	mux := newBetMux(m)
	body := `{"caller":"0x1111111111111111111111111111111111111111"}`

	rec := doRequest(t, mux, http.MethodPost, "/api/bets/5/cancel", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(m.cancelled) != 1 || m.cancelled[0] != 5 {
		t.Fatalf("cancelled = %v", m.cancelled)
	}

	rec = doRequest(t, mux, http.MethodPost, "/api/bets/5/cancel", `{"caller":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad caller status = %d", rec.Code)
	}

	for _, tc := range []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInactiveBet, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrInvalidTimestamp, http.StatusConflict},
	} {
		mux := newBetMux(&mockBetLedger{cancelErr: tc.err})
		rec := doRequest(t, mux, http.MethodPost, "/api/bets/5/cancel", body)
		if rec.Code != tc.want {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}
