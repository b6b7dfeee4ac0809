package agent

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// RecoverJSON extracts a JSON object from sloppy model output. It strips
// markdown fences, locates the first object and repairs unbalanced braces
// before giving up.
func RecoverJSON(raw string) (map[string]any, bool) {
	text := strings.TrimSpace(raw)

	// strip ```json ... ``` fences
	if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+3:]
		text = strings.TrimPrefix(text, "json")
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return nil, false
	}
	text = text[start:]

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, true
	}

	// cut at the point where braces balance out
	depth := 0
	inString := false
	escaped := false
	for i, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					if err := json.Unmarshal([]byte(text[:i+1]), &out); err == nil {
						return out, true
					}
				}
			}
		}
	}

	// truncated output: close the open braces and retry
	if depth > 0 {
		repaired := strings.TrimRight(text, ", \n\t")
		repaired = strings.TrimSuffix(repaired, ",")
		repaired += strings.Repeat("}", depth)
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return out, true
		}
	}
	return nil, false
}

// Direction is one concrete rebalancing move parsed from model text.
type Direction struct {
	FromProtocol string  `json:"from_protocol,omitempty"`
	ToProtocol   string  `json:"to_protocol,omitempty"`
	Percent      float64 `json:"percent"`
	Action       string  `json:"action"`
}

var (
	reMove   = regexp.MustCompile(`(?i)(?:reallocate|move)\s+(\d+(?:\.\d+)?)%\s+from\s+([\w\s.\-]+?)\s+to\s+([\w\s.\-]+?)(?:[,.;]|$)`)
	reAdd    = regexp.MustCompile(`(?i)add\s+(\d+(?:\.\d+)?)%\s+(?:to|into)\s+([\w\s.\-]+?)(?:[,.;]|$)`)
	reReduce = regexp.MustCompile(`(?i)reduce\s+([\w\s.\-]+?)\s+by\s+(\d+(?:\.\d+)?)%`)
)

// ParseDirections pulls rebalancing moves out of free-form explanation text.
func ParseDirections(text string) []Direction {
	var out []Direction

	for _, m := range reMove.FindAllStringSubmatch(text, -1) {
		pct, _ := strconv.ParseFloat(m[1], 64)
		out = append(out, Direction{
			Action:       "move",
			Percent:      pct,
			FromProtocol: strings.TrimSpace(m[2]),
			ToProtocol:   strings.TrimSpace(m[3]),
		})
	}
	for _, m := range reAdd.FindAllStringSubmatch(text, -1) {
		pct, _ := strconv.ParseFloat(m[1], 64)
		out = append(out, Direction{
			Action:     "add",
			Percent:    pct,
			ToProtocol: strings.TrimSpace(m[2]),
		})
	}
	for _, m := range reReduce.FindAllStringSubmatch(text, -1) {
		pct, _ := strconv.ParseFloat(m[2], 64)
		out = append(out, Direction{
			Action:       "reduce",
			Percent:      pct,
			FromProtocol: strings.TrimSpace(m[1]),
		})
	}
	return out
}

// categoryKeywords map advice language to protocol categories when no
// explicit percentages are present.
var categoryKeywords = map[string]string{
	"staking":    "staking",
	"stake":      "staking",
	"lending":    "lending",
	"lend":       "lending",
	"liquidity":  "dex",
	"dex":        "dex",
	"stablecoin": "lending",
	"diversify":  "yield",
	"yield":      "yield",
}

// DetectCategories returns the protocol categories the text recommends
// shifting toward, in first-mention order.
func DetectCategories(text string) []string {
	lower := strings.ToLower(text)
	type hit struct {
		pos int
		cat string
	}
	var hits []hit
	seen := map[string]bool{}
	for kw, cat := range categoryKeywords {
		if i := strings.Index(lower, kw); i >= 0 && !seen[cat] {
			seen[cat] = true
			hits = append(hits, hit{pos: i, cat: cat})
		}
	}
	// order by first appearance
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.cat
	}
	return out
}
