package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/autodefi-ai/autodefi/internal/store"
)

// dust positions are ignored by all portfolio math
const dustThresholdUSD = 0.01

// opportunityDelta is the minimum APY edge over the current portfolio for a
// protocol to count as an opportunity.
const opportunityDelta = 1.5

// perMoveYieldGain is the rough APY gain credited per recommended move.
const perMoveYieldGain = 0.3

// Opportunity is a protocol yielding meaningfully above the portfolio.
type Opportunity struct {
	Protocol string  `json:"protocol"`
	Category string  `json:"category"`
	APY      float64 `json:"apy"`
	Delta    float64 `json:"delta"`
}

// Recommendation is the agent's answer for one portfolio.
type Recommendation struct {
	Action            string      `json:"action"`
	Directions        []Direction `json:"directions"`
	Explanation       string      `json:"explanation"`
	Confidence        float64     `json:"confidence"`
	APYBefore         float64     `json:"apy_before"`
	APYAfter          float64     `json:"apy_after"`
	ExpectedYieldGain float64     `json:"expected_yield_gain"`
	Source            string      `json:"source"`
	Model             string      `json:"model,omitempty"`
}

// WeightedAPY is the value-weighted APY across non-dust holdings.
func WeightedAPY(holdings []store.Holding) float64 {
	var value, weighted float64
	for _, h := range holdings {
		if h.ValueUSD <= dustThresholdUSD {
			continue
		}
		value += h.ValueUSD
		weighted += h.ValueUSD * h.APY
	}
	if value == 0 {
		return 0
	}
	return weighted / value
}

// MarketAverageAPY averages the live protocol APYs.
func MarketAverageAPY(protocols []store.ProtocolData) float64 {
	if len(protocols) == 0 {
		return 0
	}
	var sum float64
	for _, p := range protocols {
		sum += p.APY
	}
	return sum / float64(len(protocols))
}

// Opportunities lists protocols beating the portfolio APY by at least the
// opportunity delta, best first.
func Opportunities(holdings []store.Holding, protocols []store.ProtocolData) []Opportunity {
	current := WeightedAPY(holdings)
	var out []Opportunity
	for _, p := range protocols {
		if delta := p.APY - current; delta >= opportunityDelta {
			out = append(out, Opportunity{
				Protocol: p.ProtocolName,
				Category: p.Category,
				APY:      p.APY,
				Delta:    delta,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Delta > out[j].Delta })
	return out
}

// rebalancePercent sizes a move by the user's risk appetite.
func rebalancePercent(risk string) float64 {
	switch strings.ToLower(risk) {
	case "low":
		return 15
	case "high":
		return 30
	default:
		return 20
	}
}

// lowestYield returns the non-dust holding with the lowest APY.
func lowestYield(holdings []store.Holding) (store.Holding, bool) {
	var worst store.Holding
	found := false
	for _, h := range holdings {
		if h.ValueUSD <= dustThresholdUSD {
			continue
		}
		if !found || h.APY < worst.APY {
			worst = h
			found = true
		}
	}
	return worst, found
}

// RuleRecommendation is the deterministic fallback strategy: shift a
// risk-sized slice from the lowest-yielding holding into the best
// opportunity, or hold when nothing clears the bar.
func RuleRecommendation(holdings []store.Holding, protocols []store.ProtocolData, risk string) *Recommendation {
	before := WeightedAPY(holdings)
	opps := Opportunities(holdings, protocols)
	worst, funded := lowestYield(holdings)

	if len(opps) == 0 || !funded {
		return &Recommendation{
			Action:      "hold",
			Directions:  []Direction{},
			Explanation: "Current allocations are within 1.5% of the best available yields. Holding is the better trade against gas costs.",
			Confidence:  0.7,
			APYBefore:   before,
			APYAfter:    before,
			Source:      "rules",
		}
	}

	best := opps[0]
	pct := rebalancePercent(risk)

	dir := Direction{
		Action:       "move",
		Percent:      pct,
		FromProtocol: worst.ProtocolName,
		ToProtocol:   best.Protocol,
	}
	dirs := []Direction{dir}
	after, _ := SimulateAPY(holdings, protocols, dirs)

	return &Recommendation{
		Action:     "rebalance",
		Directions: dirs,
		Explanation: fmt.Sprintf(
			"Move %.0f%% from %s to %s to capture a %.2f%% APY edge (%s yields %.2f%% against your weighted %.2f%%).",
			pct, worst.ProtocolName, best.Protocol, best.Delta, best.Protocol, best.APY, before,
		),
		Confidence:        0.6,
		APYBefore:         before,
		APYAfter:          after,
		ExpectedYieldGain: perMoveYieldGain * float64(len(dirs)),
		Source:            "rules",
	}
}

// SimulateAPY projects the portfolio's weighted APY after applying the
// directions. Percentages are taken of total portfolio value; destinations
// inherit the live protocol APY. It returns the projected APY and holdings.
func SimulateAPY(holdings []store.Holding, protocols []store.ProtocolData, dirs []Direction) (float64, []store.Holding) {
	apyFor := make(map[string]float64, len(protocols))
	for _, p := range protocols {
		apyFor[normName(p.ProtocolName)] = p.APY
	}

	projected := make([]store.Holding, 0, len(holdings))
	var total float64
	index := make(map[string]int)
	for _, h := range holdings {
		if h.ValueUSD <= dustThresholdUSD {
			continue
		}
		total += h.ValueUSD
		index[normName(h.ProtocolName)] = len(projected)
		projected = append(projected, h)
	}
	if total == 0 {
		return 0, projected
	}

	takeFrom := func(name string, usd float64) float64 {
		i, ok := index[normName(name)]
		if !ok {
			return 0
		}
		if usd > projected[i].ValueUSD {
			usd = projected[i].ValueUSD
		}
		projected[i].ValueUSD -= usd
		return usd
	}
	addTo := func(name string, usd float64) {
		if usd <= 0 {
			return
		}
		key := normName(name)
		if i, ok := index[key]; ok {
			projected[i].ValueUSD += usd
			return
		}
		apy, ok := apyFor[key]
		if !ok {
			apy = MarketAverageAPY(protocols)
		}
		index[key] = len(projected)
		projected = append(projected, store.Holding{
			ProtocolName: strings.TrimSpace(name),
			ValueUSD:     usd,
			APY:          apy,
		})
	}

	for _, d := range dirs {
		usd := total * d.Percent / 100
		switch d.Action {
		case "move":
			moved := takeFrom(d.FromProtocol, usd)
			addTo(d.ToProtocol, moved)
		case "add":
			// funded pro rata from every position
			var funded float64
			for i := range projected {
				cut := projected[i].ValueUSD * d.Percent / 100
				projected[i].ValueUSD -= cut
				funded += cut
			}
			addTo(d.ToProtocol, funded)
		case "reduce":
			takeFrom(d.FromProtocol, usd)
		}
	}

	kept := projected[:0]
	for _, h := range projected {
		if h.ValueUSD > dustThresholdUSD {
			kept = append(kept, h)
		}
	}
	return WeightedAPY(kept), kept
}

func normName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
