package agent

import (
	"fmt"
	"strings"

	"github.com/autodefi-ai/autodefi/internal/market"
	"github.com/autodefi-ai/autodefi/internal/store"
)

// maxPromptChars caps the prompt; past it the protocol list is cut down.
const maxPromptChars = 8000

// truncatedProtocolCount is the shortened list size for oversized prompts.
const truncatedProtocolCount = 15

func buildPrompt(holdings []store.Holding, protocols []store.ProtocolData, risk string) string {
	p := renderPrompt(holdings, protocols, risk)
	if len(p) > maxPromptChars && len(protocols) > truncatedProtocolCount {
		p = renderPrompt(holdings, protocols[:truncatedProtocolCount], risk)
	}
	return p
}

func renderPrompt(holdings []store.Holding, protocols []store.ProtocolData, risk string) string {
	var b strings.Builder

	b.WriteString("Analyze this DeFi portfolio and recommend rebalancing moves.\n\n")
	fmt.Fprintf(&b, "Risk preference: %s\n", risk)
	fmt.Fprintf(&b, "Current weighted APY: %.2f%%\n\n", WeightedAPY(holdings))

	b.WriteString("Holdings:\n")
	for _, h := range holdings {
		fmt.Fprintf(&b, "- %s: %.4f %s worth $%.2f at %.2f%% APY\n",
			h.ProtocolName, h.Amount, h.TokenSymbol, h.ValueUSD, h.APY)
	}

	b.WriteString("\nAvailable protocols (Ethereum):\n")
	for _, p := range protocols {
		fmt.Fprintf(&b, "- %s (%s): %.2f%% APY, $%.0f TVL, %s risk\n",
			p.ProtocolName, p.Category, p.APY, p.TVL, market.RiskTier(p.TVL))
	}

	b.WriteString(`
Respond with a single JSON object:
{
  "action": "rebalance" or "hold",
  "recommendations": [
    {"from_protocol": "...", "to_protocol": "...", "percentage": 0-100, "reason": "..."}
  ],
  "explanation": "one short paragraph",
  "confidence": 0.0-1.0
}
Only recommend protocols from the list above. Respect the risk preference.`)

	return b.String()
}

// minimalPrompt is the retry prompt used after a failed completion.
func minimalPrompt(holdings []store.Holding, risk string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio (%s risk, %.2f%% weighted APY):\n", risk, WeightedAPY(holdings))
	for _, h := range holdings {
		fmt.Fprintf(&b, "- %s $%.2f at %.2f%%\n", h.ProtocolName, h.ValueUSD, h.APY)
	}
	b.WriteString(`Reply with JSON: {"action":"rebalance"|"hold","recommendations":[],"explanation":"...","confidence":0.5}`)
	return b.String()
}
