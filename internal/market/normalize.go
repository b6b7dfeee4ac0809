package market

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/autodefi-ai/autodefi/internal/store"
)

const (
	maxProtocols = 50
	minPoolTVL   = 10_000
)

// RiskTier buckets a protocol by its locked value. Deep pools are treated
// as lower risk.
func RiskTier(tvl float64) string {
	switch {
	case tvl > 1_000_000:
		return "low"
	case tvl > 100_000:
		return "medium"
	default:
		return "high"
	}
}

// Categorize maps a DeFiLlama project slug to a coarse protocol category.
func Categorize(project string) string {
	p := strings.ToLower(project)
	switch {
	case strings.Contains(p, "lido"), strings.Contains(p, "stake"), strings.Contains(p, "rocket"), strings.Contains(p, "ether.fi"):
		return "staking"
	case strings.Contains(p, "aave"), strings.Contains(p, "compound"), strings.Contains(p, "morpho"), strings.Contains(p, "lend"):
		return "lending"
	case strings.Contains(p, "uniswap"), strings.Contains(p, "curve"), strings.Contains(p, "balancer"), strings.Contains(p, "swap"):
		return "dex"
	default:
		return "yield"
	}
}

// displayName turns a project slug like "aave-v3" into "Aave V3".
func displayName(project string) string {
	parts := strings.Split(project, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if len(p) <= 2 && strings.HasPrefix(p, "v") {
			parts[i] = strings.ToUpper(p)
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

type poolMeta struct {
	PoolID  string   `json:"pool_id"`
	Symbol  string   `json:"symbol"`
	APYBase *float64 `json:"apy_base,omitempty"`
}

// Normalize filters the raw pool feed down to the Ethereum protocols the
// dashboard tracks: one row per project, highest-TVL pool wins, top 50 by
// TVL, tiny pools dropped.
func Normalize(pools []Pool) []store.ProtocolData {
	best := make(map[string]Pool)
	for _, p := range pools {
		if p.Chain != "Ethereum" || p.APY == nil || p.TVLUsd < minPoolTVL {
			continue
		}
		if cur, ok := best[p.Project]; !ok || p.TVLUsd > cur.TVLUsd {
			best[p.Project] = p
		}
	}

	picked := make([]Pool, 0, len(best))
	for _, p := range best {
		picked = append(picked, p)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].TVLUsd > picked[j].TVLUsd })
	if len(picked) > maxProtocols {
		picked = picked[:maxProtocols]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	out := make([]store.ProtocolData, 0, len(picked))
	for _, p := range picked {
		meta, _ := json.Marshal(poolMeta{PoolID: p.Pool, Symbol: p.Symbol, APYBase: p.APYBase})
		out = append(out, store.ProtocolData{
			ProtocolName: displayName(p.Project),
			Chain:        p.Chain,
			APY:          *p.APY,
			TVL:          p.TVLUsd,
			Category:     Categorize(p.Project),
			Data:         meta,
			FetchedAt:    now,
		})
	}
	return out
}

// FallbackFromMarkets builds a coarse snapshot from CoinGecko market data
// when the yield feed is down. APY is unknown there, so tracked tokens get
// a flat conservative estimate.
func FallbackFromMarkets(coins []MarketCoin) []store.ProtocolData {
	now := time.Now().UTC().Format(time.RFC3339)
	out := make([]store.ProtocolData, 0, len(coins))
	for _, c := range coins {
		if CoinGeckoID(c.Symbol) == "" {
			continue
		}
		meta, _ := json.Marshal(map[string]any{"coingecko_id": c.ID, "price_usd": c.CurrentPrice})
		out = append(out, store.ProtocolData{
			ProtocolName: c.Name,
			Chain:        "Ethereum",
			APY:          2.0,
			TVL:          c.MarketCap,
			Category:     "yield",
			Data:         meta,
			FetchedAt:    now,
		})
	}
	return out
}
