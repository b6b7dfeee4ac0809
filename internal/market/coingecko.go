package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// coinGeckoIDs maps dashboard token symbols to CoinGecko coin ids.
var coinGeckoIDs = map[string]string{
	"AAVE":  "aave",
	"STETH": "lido-dao",
	"ETH":   "ethereum",
	"WETH":  "ethereum",
	"CRV":   "curve-dao-token",
	"UNI":   "uniswap",
	"COMP":  "compound-governance-token",
	"DAI":   "dai",
	"USDC":  "usd-coin",
	"USDT":  "tether",
}

// CoinGeckoID resolves a token symbol to its CoinGecko id, or "" when the
// token is not tracked.
func CoinGeckoID(symbol string) string {
	return coinGeckoIDs[strings.ToUpper(symbol)]
}

// GeckoClient talks to the CoinGecko REST API.
type GeckoClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewGeckoClient(baseURL, apiKey string) *GeckoClient {
	return &GeckoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *GeckoClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build coingecko request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("coingecko status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode coingecko response: %w", err)
	}
	return nil
}

// SimplePrices returns USD prices for the given CoinGecko ids.
func (c *GeckoClient) SimplePrices(ctx context.Context, ids []string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")

	var raw map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", params, &raw); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(raw))
	for id, cur := range raw {
		prices[id] = cur["usd"]
	}
	return prices, nil
}

// TokenPrice returns the USD price for a single token symbol.
func (c *GeckoClient) TokenPrice(ctx context.Context, symbol string) (float64, error) {
	id := CoinGeckoID(symbol)
	if id == "" {
		return 0, fmt.Errorf("token %s is not tracked", strings.ToUpper(symbol))
	}
	prices, err := c.SimplePrices(ctx, []string{id})
	if err != nil {
		return 0, err
	}
	price, ok := prices[id]
	if !ok {
		return 0, fmt.Errorf("no price for %s", id)
	}
	return price, nil
}

// MarketCoin is one row of the CoinGecko /coins/markets feed, used as a
// fallback market snapshot when DeFiLlama is unavailable.
type MarketCoin struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"current_price"`
	MarketCap    float64 `json:"market_cap"`
}

// Markets fetches the top coins by market cap.
func (c *GeckoClient) Markets(ctx context.Context, limit int) ([]MarketCoin, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", fmt.Sprintf("%d", limit))
	params.Set("page", "1")

	var coins []MarketCoin
	if err := c.get(ctx, "/coins/markets", params, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}
