// Package currency converts amounts between ISO 4217 currencies, either
// from a public rates API or from a fixed table.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vaultbot/internal/cache"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// DefaultRatesURL answers GET {url}/{BASE} with the rates of BASE.
const DefaultRatesURL = "https://open.er-api.com/v6/latest"

type ratesResponse struct {
	Result   string             `json:"result"`
	BaseCode string             `json:"base_code"`
	Rates    map[string]float64 `json:"rates"`
}

// Client fetches rates per base currency and caches them for ttl.
type Client struct {
	baseURL string
	http    *http.Client
	rates   *cache.LRUCache[map[string]float64]
}

// NewClient returns a rates client. An empty baseURL selects DefaultRatesURL
// and a non-positive ttl one hour.
func NewClient(baseURL string, ttl time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultRatesURL
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		rates:   cache.NewLRUCache[map[string]float64](32, ttl),
	}
}

// Cache exposes the rate cache so a janitor can sweep it.
func (c *Client) Cache() *cache.LRUCache[map[string]float64] {
	return c.rates
}

// Convert converts amount of from into to. It is safe for concurrent use.
func (c *Client) Convert(ctx context.Context, from string, amount float64, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	rates, err := c.ratesFor(ctx, from)
	if err != nil {
		return 0, err
	}
	rate, ok := rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: %s to %s", ErrRateUnavailable, from, to)
	}
	return amount * rate, nil
}

func (c *Client) ratesFor(ctx context.Context, base string) (map[string]float64, error) {
	if rates, ok := c.rates.Get(base); ok {
		return rates, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+base, nil)
	if err != nil {
		return nil, fmt.Errorf("build rates request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrRateUnavailable, base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s answered %d", ErrRateUnavailable, base, resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rates for %s: %w", base, err)
	}
	if body.Result != "success" || len(body.Rates) == 0 {
		return nil, fmt.Errorf("%w: %s result %q", ErrRateUnavailable, base, body.Result)
	}

	c.rates.Set(base, body.Rates)
	slog.DebugContext(ctx, "Exchange rates fetched", "base", base, "count", len(body.Rates))
	return body.Rates, nil
}
