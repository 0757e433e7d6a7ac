// Package pyth implements domain.PriceFeed against the Pyth Hermes
// historical price API.
package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/0xfraan/leverbet/internal/domain"
)

// DefaultBaseURL is the public Hermes endpoint.
const DefaultBaseURL = "https://hermes.pyth.network"

// Config holds the resolver configuration. Feeds maps a pair symbol prefix
// (e.g. "BTCUSD") to the hex Pyth feed id queried for it.
type Config struct {
	BaseURL string
	Feeds   map[string]string
}

// Resolver fetches historical prices over HTTP. When a PriceCache is
// provided, resolved prices are cached by (pair, publish time): a price at
// a fixed publish time never changes.
type Resolver struct {
	baseURL    string
	feeds      map[string]string
	cache      domain.PriceCache
	httpClient *http.Client
	logger     *slog.Logger
}

// NewResolver creates a Resolver. cache may be nil to disable caching.
func NewResolver(cfg Config, cache domain.PriceCache, logger *slog.Logger) *Resolver {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Resolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		feeds:   cfg.Feeds,
		cache:   cache,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With(slog.String("component", "pyth")),
	}
}

// apiResponse mirrors the Hermes get_price_feed payload.
type apiResponse struct {
	Price priceDetails `json:"price"`
}

type priceDetails struct {
	Price string `json:"price"`
	Expo  int32  `json:"expo"`
}

// GetPrice returns the price and decimal exponent for a pair at the given
// unix timestamp. Unsupported pairs and feed misses fail with
// domain.ErrGetPrice.
func (r *Resolver) GetPrice(ctx context.Context, pair string, timestamp uint64) (uint64, int32, error) {
	feedID, err := r.feedID(pair)
	if err != nil {
		return 0, 0, err
	}

	if r.cache != nil {
		if price, expo, err := r.cache.Get(ctx, pair, timestamp); err == nil {
			return price, expo, nil
		}
	}

	params := url.Values{}
	params.Set("id", feedID)
	params.Set("publish_time", strconv.FormatUint(timestamp, 10))
	reqURL := r.baseURL + "/api/get_price_feed?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("pyth: build request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("pyth: %s@%d: %v: %w", pair, timestamp, err, domain.ErrGetPrice)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, 0, fmt.Errorf("pyth: read response: %v: %w", err, domain.ErrGetPrice)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("pyth: %s@%d: status %d: %w", pair, timestamp, resp.StatusCode, domain.ErrGetPrice)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, 0, fmt.Errorf("pyth: decode response: %v: %w", err, domain.ErrGetPrice)
	}

	price, err := strconv.ParseUint(out.Price.Price, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("pyth: price %q: %v: %w", out.Price.Price, err, domain.ErrGetPrice)
	}

	if r.cache != nil {
		if cacheErr := r.cache.Set(ctx, pair, timestamp, price, out.Price.Expo); cacheErr != nil {
			r.logger.WarnContext(ctx, "price cache write failed",
				slog.String("pair", pair),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return price, out.Price.Expo, nil
}

// feedID resolves the Pyth feed for a pair by symbol prefix, so the padded
// 8-byte codes ("BTCUSDXX") match their 6-character feed mapping.
func (r *Resolver) feedID(pair string) (string, error) {
	for prefix, id := range r.feeds {
		if strings.HasPrefix(pair, prefix) {
			return id, nil
		}
	}
	return "", fmt.Errorf("pyth: unsupported pair %q: %w", pair, domain.ErrGetPrice)
}

// Compile-time interface check.
var _ domain.PriceFeed = (*Resolver)(nil)
