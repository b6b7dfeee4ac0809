// Package market fetches live DeFi yield data from DeFiLlama and CoinGecko,
// normalizes it into protocol snapshots and keeps a TTL-cached copy backed
// by the database.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Pool is one entry of the DeFiLlama /pools feed.
type Pool struct {
	Pool    string   `json:"pool"`
	Chain   string   `json:"chain"`
	Project string   `json:"project"`
	Symbol  string   `json:"symbol"`
	TVLUsd  float64  `json:"tvlUsd"`
	APY     *float64 `json:"apy"`
	APYBase *float64 `json:"apyBase"`
}

type poolsResponse struct {
	Status string `json:"status"`
	Data   []Pool `json:"data"`
}

// LlamaClient talks to the DeFiLlama yields API.
type LlamaClient struct {
	url    string
	apiKey string
	hc     *http.Client
}

func NewLlamaClient(url, apiKey string) *LlamaClient {
	return &LlamaClient{
		url:    url,
		apiKey: apiKey,
		hc:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Pools fetches the full yield pool list.
func (c *LlamaClient) Pools(ctx context.Context) ([]Pool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build defillama request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("defillama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("defillama status %d: %s", resp.StatusCode, body)
	}

	var parsed poolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode defillama response: %w", err)
	}
	if parsed.Status != "" && parsed.Status != "success" {
		return nil, fmt.Errorf("defillama status %q", parsed.Status)
	}
	return parsed.Data, nil
}
