package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autodefi-ai/autodefi/internal/store"
)

func testProtocols() []store.ProtocolData {
	return []store.ProtocolData{
		{ProtocolName: "Lido", Category: "staking", APY: 5.0, TVL: 20_000_000},
		{ProtocolName: "Rocket Pool", Category: "staking", APY: 4.6, TVL: 3_000_000},
		{ProtocolName: "Aave", Category: "lending", APY: 4.0, TVL: 9_000_000},
		{ProtocolName: "Uniswap", Category: "dex", APY: 7.5, TVL: 6_000_000},
	}
}

func TestNormalizeAllocationsWithinTolerance(t *testing.T) {
	in := []store.Allocation{
		{ProtocolName: "Lido", Percent: 60},
		{ProtocolName: "Aave", Percent: 40.5},
	}
	out := NormalizeAllocations(in)
	// sum 100.5 is within tolerance, left untouched
	assert.InDelta(t, 60, out[0].Percent, 1e-9)
	assert.InDelta(t, 40.5, out[1].Percent, 1e-9)
}

func TestNormalizeAllocationsRescales(t *testing.T) {
	in := []store.Allocation{
		{ProtocolName: "Lido", Percent: 40},
		{ProtocolName: "Aave", Percent: 40},
	}
	out := NormalizeAllocations(in)
	require.Len(t, out, 2)
	assert.InDelta(t, 50, out[0].Percent, 1e-9)
	assert.InDelta(t, 50, out[1].Percent, 1e-9)
}

func TestNormalizeAllocationsDropsNonPositive(t *testing.T) {
	in := []store.Allocation{
		{ProtocolName: "Lido", Percent: 100},
		{ProtocolName: "Aave", Percent: 0},
		{ProtocolName: "Uniswap", Percent: -5},
	}
	out := NormalizeAllocations(in)
	require.Len(t, out, 1)
	assert.Equal(t, "Lido", out[0].ProtocolName)
}

func TestExpectedAPYWeighted(t *testing.T) {
	allocs := []store.Allocation{
		{ProtocolName: "Lido", Percent: 50},
		{ProtocolName: "Uniswap", Percent: 50},
	}
	// 0.5*5.0 + 0.5*7.5 = 6.25
	assert.InDelta(t, 6.25, ExpectedAPY(allocs, testProtocols()), 1e-9)
}

func TestExpectedAPYUnknownProtocolUsesAverage(t *testing.T) {
	allocs := []store.Allocation{{ProtocolName: "Mystery", Percent: 100}}
	avg := (5.0 + 4.6 + 4.0 + 7.5) / 4
	assert.InDelta(t, avg, ExpectedAPY(allocs, testProtocols()), 1e-9)
}

func TestMaxShift(t *testing.T) {
	old := []store.Allocation{
		{ProtocolName: "Lido", Percent: 60},
		{ProtocolName: "Aave", Percent: 40},
	}
	next := []store.Allocation{
		{ProtocolName: "Lido", Percent: 45},
		{ProtocolName: "Uniswap", Percent: 55},
	}
	// Aave disappears entirely: shift 40; Uniswap appears: 55
	assert.InDelta(t, 55, MaxShift(old, next), 1e-9)
}

func TestMaxShiftIdentical(t *testing.T) {
	allocs := []store.Allocation{{ProtocolName: "Lido", Percent: 100}}
	assert.Zero(t, MaxShift(allocs, allocs))
}

func TestRuleCandidateSplits(t *testing.T) {
	cand := ruleCandidate("low", testProtocols())
	require.Len(t, cand.Allocations, 3)

	byName := map[string]float64{}
	for _, a := range cand.Allocations {
		byName[a.ProtocolName] = a.Percent
	}
	assert.InDelta(t, 60, byName["Lido"], 1e-9)    // best staking
	assert.InDelta(t, 30, byName["Aave"], 1e-9)    // best lending
	assert.InDelta(t, 10, byName["Uniswap"], 1e-9) // best dex
	assert.Equal(t, "rules", cand.Source)
}

func TestRuleCandidateMissingCategory(t *testing.T) {
	protocols := []store.ProtocolData{
		{ProtocolName: "Lido", Category: "staking", APY: 5.0, TVL: 20_000_000},
		{ProtocolName: "Aave", Category: "lending", APY: 4.0, TVL: 9_000_000},
	}
	cand := ruleCandidate("high", protocols)

	var sum float64
	for _, a := range cand.Allocations {
		sum += a.Percent
	}
	// the 40% dex share folds into the best available protocol
	assert.InDelta(t, 100, sum, 1e-9)

	byName := map[string]float64{}
	for _, a := range cand.Allocations {
		byName[a.ProtocolName] = a.Percent
	}
	assert.InDelta(t, 70, byName["Lido"], 1e-9)
}
