package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestRiskTier(t *testing.T) {
	assert.Equal(t, "low", RiskTier(2_500_000))
	assert.Equal(t, "medium", RiskTier(500_000))
	assert.Equal(t, "high", RiskTier(50_000))
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, "staking", Categorize("lido"))
	assert.Equal(t, "lending", Categorize("aave-v3"))
	assert.Equal(t, "dex", Categorize("uniswap-v3"))
	assert.Equal(t, "yield", Categorize("pendle"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Aave V3", displayName("aave-v3"))
	assert.Equal(t, "Lido", displayName("lido"))
	assert.Equal(t, "Curve Dex", displayName("curve-dex"))
}

func TestNormalizeFiltersAndDedupes(t *testing.T) {
	pools := []Pool{
		{Pool: "a1", Chain: "Ethereum", Project: "aave-v3", Symbol: "USDC", TVLUsd: 5_000_000, APY: fp(3.1)},
		{Pool: "a2", Chain: "Ethereum", Project: "aave-v3", Symbol: "DAI", TVLUsd: 9_000_000, APY: fp(2.7)},
		{Pool: "l1", Chain: "Ethereum", Project: "lido", Symbol: "STETH", TVLUsd: 20_000_000, APY: fp(5.2)},
		{Pool: "x1", Chain: "Arbitrum", Project: "gmx", Symbol: "GLP", TVLUsd: 8_000_000, APY: fp(11.0)},
		{Pool: "n1", Chain: "Ethereum", Project: "noapy", Symbol: "X", TVLUsd: 1_000_000, APY: nil},
		{Pool: "t1", Chain: "Ethereum", Project: "tiny", Symbol: "T", TVLUsd: 500, APY: fp(99.0)},
	}

	rows := Normalize(pools)
	require.Len(t, rows, 2)

	// sorted by TVL descending, one row per project
	assert.Equal(t, "Lido", rows[0].ProtocolName)
	assert.Equal(t, "staking", rows[0].Category)
	assert.Equal(t, "low", RiskTier(rows[0].TVL))

	assert.Equal(t, "Aave V3", rows[1].ProtocolName)
	assert.InDelta(t, 2.7, rows[1].APY, 1e-9)
	assert.InDelta(t, 9_000_000, rows[1].TVL, 1e-9)
}

func TestNormalizeCapsAtFifty(t *testing.T) {
	pools := make([]Pool, 0, 80)
	for i := 0; i < 80; i++ {
		pools = append(pools, Pool{
			Chain:   "Ethereum",
			Project: string(rune('a'+i%26)) + string(rune('a'+i/26)),
			TVLUsd:  float64(100_000 + i),
			APY:     fp(1.0),
		})
	}
	rows := Normalize(pools)
	assert.Len(t, rows, maxProtocols)
}

func TestFallbackFromMarketsKeepsTrackedTokensOnly(t *testing.T) {
	coins := []MarketCoin{
		{ID: "aave", Symbol: "aave", Name: "Aave", CurrentPrice: 90, MarketCap: 1_300_000_000},
		{ID: "dogecoin", Symbol: "doge", Name: "Dogecoin", CurrentPrice: 0.1, MarketCap: 9_000_000_000},
	}
	rows := FallbackFromMarkets(coins)
	require.Len(t, rows, 1)
	assert.Equal(t, "Aave", rows[0].ProtocolName)
	assert.InDelta(t, 2.0, rows[0].APY, 1e-9)
}
