package vault

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/agent"
	"github.com/autodefi-ai/autodefi/internal/store"
)

// NormalizeAllocations rescales percentages to sum to 100 when they drift
// past the tolerance. Zero and negative entries are dropped first.
func NormalizeAllocations(allocs []store.Allocation) []store.Allocation {
	kept := make([]store.Allocation, 0, len(allocs))
	var sum float64
	for _, a := range allocs {
		if a.Percent <= 0 {
			continue
		}
		kept = append(kept, a)
		sum += a.Percent
	}
	if len(kept) == 0 || math.Abs(sum-100) <= normalizeTolerance {
		return kept
	}
	for i := range kept {
		kept[i].Percent = kept[i].Percent / sum * 100
	}
	return kept
}

// ExpectedAPY computes the allocation-weighted APY from live protocol data.
// Unknown protocols contribute the market average.
func ExpectedAPY(allocs []store.Allocation, protocols []store.ProtocolData) float64 {
	apyFor := make(map[string]float64, len(protocols))
	var avg float64
	for _, p := range protocols {
		apyFor[strings.ToLower(p.ProtocolName)] = p.APY
		avg += p.APY
	}
	if len(protocols) > 0 {
		avg /= float64(len(protocols))
	}

	var out float64
	for _, a := range allocs {
		apy, ok := apyFor[strings.ToLower(a.ProtocolName)]
		if !ok {
			apy = avg
		}
		out += a.Percent / 100 * apy
	}
	return out
}

// MaxShift returns the largest percentage-point change of any protocol
// between two allocation sets.
func MaxShift(old, next []store.Allocation) float64 {
	pct := map[string]float64{}
	for _, a := range old {
		pct[strings.ToLower(a.ProtocolName)] = a.Percent
	}
	var max float64
	seen := map[string]bool{}
	for _, a := range next {
		key := strings.ToLower(a.ProtocolName)
		seen[key] = true
		if d := math.Abs(a.Percent - pct[key]); d > max {
			max = d
		}
	}
	for key, p := range pct {
		if !seen[key] && p > max {
			max = p
		}
	}
	return max
}

// ruleSplits are the category weights of the rule-based vault builder.
var ruleSplits = map[string]map[string]float64{
	"low":    {"staking": 60, "lending": 30, "dex": 10},
	"medium": {"staking": 50, "lending": 30, "dex": 20},
	"high":   {"staking": 30, "lending": 30, "dex": 40},
}

// ruleCandidate builds a vault from fixed category splits, picking the
// highest-APY protocol of each category. A missing category's share goes to
// the best remaining protocol.
func ruleCandidate(risk string, protocols []store.ProtocolData) candidate {
	splits := ruleSplits[risk]

	bestOf := map[string]*store.ProtocolData{}
	var bestAny *store.ProtocolData
	for i := range protocols {
		p := &protocols[i]
		if cur := bestOf[p.Category]; cur == nil || p.APY > cur.APY {
			bestOf[p.Category] = p
		}
		if bestAny == nil || p.APY > bestAny.APY {
			bestAny = p
		}
	}

	var allocs []store.Allocation
	var orphaned float64
	for _, cat := range []string{"staking", "lending", "dex"} {
		share := splits[cat]
		p := bestOf[cat]
		if p == nil {
			orphaned += share
			continue
		}
		allocs = append(allocs, store.Allocation{ProtocolName: p.ProtocolName, Percent: share})
	}
	if orphaned > 0 && bestAny != nil {
		merged := false
		for i := range allocs {
			if allocs[i].ProtocolName == bestAny.ProtocolName {
				allocs[i].Percent += orphaned
				merged = true
				break
			}
		}
		if !merged {
			allocs = append(allocs, store.Allocation{ProtocolName: bestAny.ProtocolName, Percent: orphaned})
		}
	}

	return candidate{
		Name:        fmt.Sprintf("%s Yield Vault", strings.ToUpper(risk[:1])+risk[1:]),
		Description: fmt.Sprintf("A %s-risk allocation across the strongest staking, lending and DEX yields.", risk),
		Allocations: allocs,
		Reasoning:   "Built from fixed category weights over the current top protocol of each category.",
		Confidence:  0.5,
		Source:      "rules",
	}
}

// propose asks the model for an allocation set and falls back to the rule
// splits when the model is unavailable or its output is unusable.
func (s *Service) propose(ctx context.Context, risk string, protocols []store.ProtocolData) candidate {
	if s.chat == nil {
		return ruleCandidate(risk, protocols)
	}

	out, err := s.chat.Complete(ctx, vaultPrompt(risk, protocols), 0.3, vaultPromptMaxTokens)
	if err != nil {
		s.log.Warn("vault completion failed, using rule splits", zap.Error(err))
		return ruleCandidate(risk, protocols)
	}
	obj, ok := agent.RecoverJSON(out)
	if !ok {
		s.log.Warn("unparseable vault completion, using rule splits")
		return ruleCandidate(risk, protocols)
	}

	cand := candidate{Source: "ai", Confidence: 0.7}
	cand.Name, _ = obj["name"].(string)
	cand.Description, _ = obj["description"].(string)
	cand.Reasoning, _ = obj["reasoning"].(string)
	if v, ok := obj["confidence"].(float64); ok {
		cand.Confidence = v
	}
	if raw, ok := obj["allocations"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["protocol_name"].(string)
			pct, _ := m["percent"].(float64)
			if name != "" && pct > 0 {
				cand.Allocations = append(cand.Allocations, store.Allocation{ProtocolName: name, Percent: pct})
			}
		}
	}
	if len(cand.Allocations) == 0 {
		s.log.Warn("vault completion had no usable allocations, using rule splits")
		return ruleCandidate(risk, protocols)
	}
	if cand.Name == "" {
		cand.Name = fmt.Sprintf("%s Yield Vault", strings.ToUpper(risk[:1])+risk[1:])
	}
	return cand
}

func vaultPrompt(risk string, protocols []store.ProtocolData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Design a %s-risk DeFi vault allocation from these Ethereum protocols:\n", risk)
	for _, p := range protocols {
		fmt.Fprintf(&b, "- %s (%s): %.2f%% APY, $%.0f TVL\n", p.ProtocolName, p.Category, p.APY, p.TVL)
	}
	b.WriteString(`
Respond with a single JSON object:
{
  "name": "...",
  "description": "...",
  "allocations": [{"protocol_name": "...", "percent": 0-100}],
  "reasoning": "one short paragraph",
  "confidence": 0.0-1.0
}
Percentages must sum to 100. Use only protocols from the list.`)
	return b.String()
}
