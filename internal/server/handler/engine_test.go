package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xfraan/leverbet/internal/domain"
	"github.com/0xfraan/leverbet/internal/ledger"
)

type mockEngineLedger struct {
	state domain.PoolState
	cfg   ledger.Config

	addErr    error
	deleteErr error
	setErr    error

	added   []domain.Pair
	deleted []domain.Pair
}

func (m *mockEngineLedger) State() domain.PoolState { return m.state }
func (m *mockEngineLedger) Config() ledger.Config   { return m.cfg }

func (m *mockEngineLedger) AddPairs(_ common.Address, pairs []domain.Pair) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, pairs...)
	return nil
}

func (m *mockEngineLedger) DeletePairs(_ common.Address, pairs []domain.Pair) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, pairs...)
	return nil
}

func (m *mockEngineLedger) SetAmounts(_ common.Address, minBet, maxBet, maxUtilizedLiquidity uint64) error {
	return m.setErr
}

func testEngineConfig() ledger.Config {
	pair, _ := domain.ParsePair("BTCUSDXX")
	cfg := ledger.Config{
		ProgramID:            common.HexToAddress("0x55"),
		Authority:            common.HexToAddress("0x33"),
		Escrow:               common.HexToAddress("0x44"),
		MinBet:               5_000_000,
		MaxBet:               50_000_000,
		MaxUtilizedLiquidity: 255_000_000,
		Leverage:             1700,
		NumPairs:             1,
	}
	cfg.AcceptedPairs[0] = pair
	return cfg
}

func newEngineMux(l EngineLedger) *http.ServeMux {
	h := NewEngineHandler(l, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", h.GetState)
	mux.HandleFunc("GET /api/config", h.GetConfig)
	mux.HandleFunc("POST /api/config/pairs", h.AddPairs)
	mux.HandleFunc("DELETE /api/config/pairs", h.DeletePairs)
	mux.HandleFunc("POST /api/config/amounts", h.SetAmounts)
	return mux
}

func TestGetStateHandler(t *testing.T) {
	m := &mockEngineLedger{state: domain.PoolState{LockedLiquidity: 17_000_000, NextBetID: 3}}
	mux := newEngineMux(m)

	rec := doRequest(t, mux, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var state struct {
		LockedLiquidity uint64 `json:"locked_liquidity"`
		NextBetID       uint64 `json:"next_bet_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.LockedLiquidity != 17_000_000 || state.NextBetID != 3 {
		t.Fatalf("state = %+v", state)
	}
}

func TestGetConfigHandler(t *testing.T) {
	mux := newEngineMux(&mockEngineLedger{cfg: testEngineConfig()})

	rec := doRequest(t, mux, http.MethodGet, "/api/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view struct {
		MinBet   uint64   `json:"min_bet"`
		Leverage uint64   `json:"leverage"`
		Pairs    []string `json:"pairs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.MinBet != 5_000_000 || view.Leverage != 1700 {
		t.Fatalf("view = %+v", view)
	}
	if len(view.Pairs) != 1 || view.Pairs[0] != "BTCUSDXX" {
		t.Fatalf("pairs = %v", view.Pairs)
	}
}

func TestPairMutationHandlers(t *testing.T) {
	body := `{"caller":"0x3333333333333333333333333333333333333333","pairs":["ETHUSDXX"]}`

	m := &mockEngineLedger{cfg: testEngineConfig()}
	mux := newEngineMux(m)

	rec := doRequest(t, mux, http.MethodPost, "/api/config/pairs", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body)
	}
	if len(m.added) != 1 {
		t.Fatalf("added = %v", m.added)
	}

	rec = doRequest(t, mux, http.MethodDelete, "/api/config/pairs", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body)
	}
	if len(m.deleted) != 1 {
		t.Fatalf("deleted = %v", m.deleted)
	}

	t.Run("rejections", func(t *testing.T) {
		cases := []struct {
			name string
			body string
			err  error
			want int
		}{
			{"bad caller", `{"caller":"nope","pairs":["ETHUSDXX"]}`, nil, http.StatusBadRequest},
			{"empty pairs", `{"caller":"0x3333333333333333333333333333333333333333","pairs":[]}`, nil, http.StatusBadRequest},
			{"short pair", `{"caller":"0x3333333333333333333333333333333333333333","pairs":["ETH"]}`, nil, http.StatusBadRequest},
			{"not authority", body, domain.ErrUnauthorized, http.StatusForbidden},
			{"set full", body, domain.ErrMaxPairsExceeded, http.StatusConflict},
		}
		for _, tc := range cases {
			mux := newEngineMux(&mockEngineLedger{cfg: testEngineConfig(), addErr: tc.err})
			rec := doRequest(t, mux, http.MethodPost, "/api/config/pairs", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
			}
		}
	})
}

func TestSetAmountsHandler(t *testing.T) {
	body := `{"caller":"0x3333333333333333333333333333333333333333",
		"min_bet":1000000,"max_bet":2000000,"max_utilized_liquidity":10000000}`

	mux := newEngineMux(&mockEngineLedger{cfg: testEngineConfig()})
	rec := doRequest(t, mux, http.MethodPost, "/api/config/amounts", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	for _, tc := range []struct {
		err  error
		want int
	}{
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
	} {
		mux := newEngineMux(&mockEngineLedger{cfg: testEngineConfig(), setErr: tc.err})
		rec := doRequest(t, mux, http.MethodPost, "/api/config/amounts", body)
		if rec.Code != tc.want {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}
