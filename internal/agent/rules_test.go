package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autodefi-ai/autodefi/internal/store"
)

func sampleHoldings() []store.Holding {
	return []store.Holding{
		{ProtocolName: "Aave", TokenSymbol: "AAVE", ValueUSD: 1000, APY: 4.0},
		{ProtocolName: "Lido", TokenSymbol: "stETH", ValueUSD: 3000, APY: 5.0},
	}
}

func sampleProtocols() []store.ProtocolData {
	return []store.ProtocolData{
		{ProtocolName: "Lido", Category: "staking", APY: 5.0, TVL: 20_000_000},
		{ProtocolName: "Aave", Category: "lending", APY: 4.0, TVL: 9_000_000},
		{ProtocolName: "Pendle", Category: "yield", APY: 9.5, TVL: 2_000_000},
	}
}

func TestWeightedAPY(t *testing.T) {
	// (1000*4 + 3000*5) / 4000 = 4.75
	assert.InDelta(t, 4.75, WeightedAPY(sampleHoldings()), 1e-9)
}

func TestWeightedAPYIgnoresDust(t *testing.T) {
	holdings := append(sampleHoldings(), store.Holding{ProtocolName: "Dust", ValueUSD: 0.005, APY: 99})
	assert.InDelta(t, 4.75, WeightedAPY(holdings), 1e-9)
}

func TestWeightedAPYEmpty(t *testing.T) {
	assert.Zero(t, WeightedAPY(nil))
}

func TestOpportunitiesThreshold(t *testing.T) {
	opps := Opportunities(sampleHoldings(), sampleProtocols())
	// only Pendle clears weighted 4.75 + 1.5
	require.Len(t, opps, 1)
	assert.Equal(t, "Pendle", opps[0].Protocol)
	assert.InDelta(t, 4.75, opps[0].Delta, 1e-2)
}

func TestRuleRecommendationMovesToBestOpportunity(t *testing.T) {
	rec := RuleRecommendation(sampleHoldings(), sampleProtocols(), "medium")
	require.Equal(t, "rebalance", rec.Action)
	require.Len(t, rec.Directions, 1)

	d := rec.Directions[0]
	assert.Equal(t, "Aave", d.FromProtocol) // lowest APY holding
	assert.Equal(t, "Pendle", d.ToProtocol)
	assert.InDelta(t, 20, d.Percent, 1e-9)
	assert.Greater(t, rec.APYAfter, rec.APYBefore)
	assert.Equal(t, "rules", rec.Source)
}

func TestRuleRecommendationSkipsDustSource(t *testing.T) {
	// the dust position has the lowest APY but cannot fund a move
	holdings := append([]store.Holding{
		{ProtocolName: "Dust", TokenSymbol: "DST", ValueUSD: 0.005, APY: 0.1},
	}, sampleHoldings()...)

	rec := RuleRecommendation(holdings, sampleProtocols(), "medium")
	require.Equal(t, "rebalance", rec.Action)
	require.Len(t, rec.Directions, 1)
	assert.Equal(t, "Aave", rec.Directions[0].FromProtocol)
}

func TestRuleRecommendationHoldsWhenAllDust(t *testing.T) {
	holdings := []store.Holding{
		{ProtocolName: "Dust", TokenSymbol: "DST", ValueUSD: 0.005, APY: 0.1},
	}
	rec := RuleRecommendation(holdings, sampleProtocols(), "medium")
	assert.Equal(t, "hold", rec.Action)
	assert.Empty(t, rec.Directions)
}

func TestRuleRecommendationPercentByRisk(t *testing.T) {
	low := RuleRecommendation(sampleHoldings(), sampleProtocols(), "low")
	high := RuleRecommendation(sampleHoldings(), sampleProtocols(), "high")
	assert.InDelta(t, 15, low.Directions[0].Percent, 1e-9)
	assert.InDelta(t, 30, high.Directions[0].Percent, 1e-9)
}

func TestRuleRecommendationHoldsWithoutEdge(t *testing.T) {
	protocols := []store.ProtocolData{
		{ProtocolName: "Lido", APY: 5.0, TVL: 20_000_000},
		{ProtocolName: "Aave", APY: 4.5, TVL: 9_000_000},
	}
	rec := RuleRecommendation(sampleHoldings(), protocols, "medium")
	assert.Equal(t, "hold", rec.Action)
	assert.Empty(t, rec.Directions)
	assert.InDelta(t, rec.APYBefore, rec.APYAfter, 1e-9)
}

func TestSimulateAPYMove(t *testing.T) {
	dirs := []Direction{{Action: "move", Percent: 25, FromProtocol: "Aave", ToProtocol: "Pendle"}}
	after, projected := SimulateAPY(sampleHoldings(), sampleProtocols(), dirs)

	// 25% of $4000 = $1000, all of Aave, now at Pendle's 9.5%
	// (3000*5 + 1000*9.5) / 4000 = 6.125
	assert.InDelta(t, 6.125, after, 1e-9)

	byName := map[string]store.Holding{}
	for _, h := range projected {
		byName[h.ProtocolName] = h
	}
	assert.NotContains(t, byName, "Aave") // emptied position is dropped
	assert.InDelta(t, 1000, byName["Pendle"].ValueUSD, 1e-9)
	assert.InDelta(t, 9.5, byName["Pendle"].APY, 1e-9)
}

func TestSimulateAPYMoveCapsAtPositionSize(t *testing.T) {
	dirs := []Direction{{Action: "move", Percent: 80, FromProtocol: "Aave", ToProtocol: "Pendle"}}
	// 80% of $4000 is $3200 but Aave only holds $1000
	after, projected := SimulateAPY(sampleHoldings(), sampleProtocols(), dirs)
	assert.InDelta(t, 6.125, after, 1e-9)

	var total float64
	for _, h := range projected {
		total += h.ValueUSD
	}
	assert.InDelta(t, 4000, total, 1e-9)
}

func TestSimulateAPYUnknownDestinationUsesMarketAverage(t *testing.T) {
	dirs := []Direction{{Action: "move", Percent: 10, FromProtocol: "Lido", ToProtocol: "Mystery"}}
	_, projected := SimulateAPY(sampleHoldings(), sampleProtocols(), dirs)

	var found bool
	for _, h := range projected {
		if h.ProtocolName == "Mystery" {
			found = true
			assert.InDelta(t, MarketAverageAPY(sampleProtocols()), h.APY, 1e-9)
		}
	}
	assert.True(t, found)
}

func TestSimulateAPYEmptyPortfolio(t *testing.T) {
	after, projected := SimulateAPY(nil, sampleProtocols(), nil)
	assert.Zero(t, after)
	assert.Empty(t, projected)
}
