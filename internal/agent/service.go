package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/store"
)

const (
	protocolCacheKey = "live_protocols"
	protocolCacheTTL = 10 * time.Minute
	maxLiveProtocols = 50
	maxOutputTokens  = 1000
	retryTemperature = 0.2
)

// Repo is the database surface the agent needs.
type Repo interface {
	EnsureUser(ctx context.Context, wallet string) (*store.User, error)
	EnsurePortfolio(ctx context.Context, userID int64) (*store.Portfolio, error)
	ListHoldings(ctx context.Context, portfolioID int64) ([]store.Holding, error)
	InsertDecisionLog(ctx context.Context, l store.DecisionLog) error
	InsertTransactionLog(ctx context.Context, l store.TransactionLog) error
}

// ProtocolSource supplies the live protocol snapshot.
type ProtocolSource interface {
	Protocols(ctx context.Context, fresh bool, names []string) ([]store.ProtocolData, string, error)
}

// Options tune the model call and fallback behavior.
type Options struct {
	Model       string
	Temperature float32
	Fallback    bool
}

type Service struct {
	repo      Repo
	protocols ProtocolSource
	chat      ChatClient
	opts      Options
	cache     *gocache.Cache
	log       *zap.Logger
}

// NewService wires the agent. chat may be nil, which forces the rule engine.
func NewService(repo Repo, protocols ProtocolSource, chat ChatClient, opts Options, log *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		protocols: protocols,
		chat:      chat,
		opts:      opts,
		cache:     gocache.New(protocolCacheTTL, 2*protocolCacheTTL),
		log:       log,
	}
}

// Metrics summarizes the portfolio against the market.
type Metrics struct {
	WeightedAPY   float64       `json:"weighted_apy"`
	MarketAvgAPY  float64       `json:"market_avg_apy"`
	Opportunities []Opportunity `json:"opportunities"`
}

// Analysis is the full response of one agent run.
type Analysis struct {
	Wallet         string          `json:"wallet_address"`
	PortfolioValue float64         `json:"portfolio_value"`
	Holdings       []store.Holding `json:"holdings"`
	Metrics        Metrics         `json:"metrics"`
	Recommendation *Recommendation `json:"recommendation"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

func (s *Service) liveProtocols(ctx context.Context) ([]store.ProtocolData, error) {
	if cached, ok := s.cache.Get(protocolCacheKey); ok {
		return cached.([]store.ProtocolData), nil
	}
	rows, _, err := s.protocols.Protocols(ctx, false, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) > maxLiveProtocols {
		rows = rows[:maxLiveProtocols]
	}
	s.cache.SetDefault(protocolCacheKey, rows)
	return rows, nil
}

// Analyze runs the full pipeline for one wallet and records the decision.
func (s *Service) Analyze(ctx context.Context, wallet string) (*Analysis, error) {
	user, err := s.repo.EnsureUser(ctx, wallet)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.EnsurePortfolio(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.repo.ListHoldings(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Wallet:      wallet,
		Holdings:    holdings,
		GeneratedAt: time.Now().UTC(),
	}
	for _, h := range holdings {
		analysis.PortfolioValue += h.ValueUSD
	}

	if len(holdings) == 0 {
		analysis.Holdings = []store.Holding{}
		analysis.Recommendation = &Recommendation{
			Action:      "hold",
			Directions:  []Direction{},
			Explanation: "This portfolio has no holdings to analyze yet.",
			Confidence:  1.0,
			Source:      "rules",
		}
		return analysis, nil
	}

	protocols, err := s.liveProtocols(ctx)
	if err != nil {
		return nil, fmt.Errorf("load protocols: %w", err)
	}

	analysis.Metrics = Metrics{
		WeightedAPY:   WeightedAPY(holdings),
		MarketAvgAPY:  MarketAverageAPY(protocols),
		Opportunities: Opportunities(holdings, protocols),
	}

	rec := s.recommend(ctx, holdings, protocols, user.RiskPreference)
	analysis.Recommendation = rec

	s.recordDecision(ctx, user.ID, rec)
	return analysis, nil
}

func (s *Service) recommend(ctx context.Context, holdings []store.Holding, protocols []store.ProtocolData, risk string) *Recommendation {
	if s.chat == nil {
		return RuleRecommendation(holdings, protocols, risk)
	}

	rec, err := s.askModel(ctx, holdings, protocols, risk)
	if err != nil {
		s.log.Warn("model recommendation failed", zap.Error(err))
		if s.opts.Fallback {
			return RuleRecommendation(holdings, protocols, risk)
		}
		return &Recommendation{
			Action:      "hold",
			Directions:  []Direction{},
			Explanation: "AI analysis is temporarily unavailable.",
			Confidence:  0,
			APYBefore:   WeightedAPY(holdings),
			APYAfter:    WeightedAPY(holdings),
			Source:      "error",
		}
	}
	return rec
}

func (s *Service) askModel(ctx context.Context, holdings []store.Holding, protocols []store.ProtocolData, risk string) (*Recommendation, error) {
	prompt := buildPrompt(holdings, protocols, risk)

	out, err := s.chat.Complete(ctx, prompt, s.opts.Temperature, maxOutputTokens)
	if err != nil {
		s.log.Warn("completion failed, retrying with minimal prompt", zap.Error(err))
		out, err = s.chat.Complete(ctx, minimalPrompt(holdings, risk), retryTemperature, maxOutputTokens)
		if err != nil {
			return nil, err
		}
	}

	obj, ok := RecoverJSON(out)
	if !ok {
		return nil, fmt.Errorf("unparseable model output (%d chars)", len(out))
	}
	rec := s.parseModelObject(obj, holdings, protocols)
	rec.Model = s.opts.Model
	rec.Source = "ai"

	after, _ := SimulateAPY(holdings, protocols, rec.Directions)
	rec.APYBefore = WeightedAPY(holdings)
	rec.APYAfter = after
	rec.ExpectedYieldGain = perMoveYieldGain * float64(len(rec.Directions))
	return rec, nil
}

// parseModelObject maps the recovered JSON to a recommendation, degrading
// from structured moves to text parsing to category keywords.
func (s *Service) parseModelObject(obj map[string]any, holdings []store.Holding, protocols []store.ProtocolData) *Recommendation {
	rec := &Recommendation{Action: "hold", Directions: []Direction{}}

	if v, ok := obj["action"].(string); ok && v != "" {
		rec.Action = v
	}
	if v, ok := obj["explanation"].(string); ok {
		rec.Explanation = v
	}
	if v, ok := obj["confidence"].(float64); ok {
		rec.Confidence = v
	}

	if raw, ok := obj["recommendations"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			d := Direction{Action: "move"}
			d.FromProtocol, _ = m["from_protocol"].(string)
			d.ToProtocol, _ = m["to_protocol"].(string)
			if pct, ok := m["percentage"].(float64); ok {
				d.Percent = pct
			}
			if d.Percent > 0 && d.ToProtocol != "" {
				if d.FromProtocol == "" {
					d.Action = "add"
				}
				rec.Directions = append(rec.Directions, d)
			}
		}
	}

	if len(rec.Directions) == 0 && rec.Explanation != "" {
		rec.Directions = ParseDirections(rec.Explanation)
	}
	if len(rec.Directions) == 0 && rec.Action == "rebalance" {
		rec.Directions = s.directionsFromCategories(rec.Explanation, holdings, protocols)
	}
	if len(rec.Directions) == 0 {
		rec.Action = "hold"
	}
	return rec
}

// directionsFromCategories turns category keywords in advice text into a
// concrete move toward the best protocol of the first mentioned category.
func (s *Service) directionsFromCategories(text string, holdings []store.Holding, protocols []store.ProtocolData) []Direction {
	cats := DetectCategories(text)
	if len(cats) == 0 || len(holdings) == 0 {
		return nil
	}

	var best *store.ProtocolData
	for i := range protocols {
		if protocols[i].Category != cats[0] {
			continue
		}
		if best == nil || protocols[i].APY > best.APY {
			best = &protocols[i]
		}
	}
	if best == nil {
		return nil
	}

	worst, ok := lowestYield(holdings)
	if !ok {
		return nil
	}
	return []Direction{{
		Action:       "move",
		Percent:      rebalancePercent("medium"),
		FromProtocol: worst.ProtocolName,
		ToProtocol:   best.ProtocolName,
	}}
}

func (s *Service) recordDecision(ctx context.Context, userID int64, rec *Recommendation) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	err = s.repo.InsertDecisionLog(ctx, store.DecisionLog{
		UserID:         userID,
		Recommendation: payload,
		Explanation:    rec.Explanation,
		Confidence:     rec.Confidence,
		Executed:       false,
	})
	if err != nil {
		s.log.Warn("record decision failed", zap.Error(err))
	}
}

// SimulationResult pairs a recommendation with the projected holdings.
type SimulationResult struct {
	Analysis          *Analysis       `json:"analysis"`
	ProjectedHoldings []store.Holding `json:"projected_holdings"`
}

// Simulate runs an analysis and projects the holdings after applying it.
func (s *Service) Simulate(ctx context.Context, wallet string) (*SimulationResult, error) {
	analysis, err := s.Analyze(ctx, wallet)
	if err != nil {
		return nil, err
	}
	protocols, _ := s.liveProtocols(ctx)
	_, projected := SimulateAPY(analysis.Holdings, protocols, analysis.Recommendation.Directions)
	return &SimulationResult{Analysis: analysis, ProjectedHoldings: projected}, nil
}

// ExecuteStub records the would-be transactions without touching any chain.
// On-chain execution stays with the user's wallet.
func (s *Service) ExecuteStub(ctx context.Context, wallet string, dirs []Direction, amountUSD float64) error {
	user, err := s.repo.EnsureUser(ctx, wallet)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		err := s.repo.InsertTransactionLog(ctx, store.TransactionLog{
			UserID:          user.ID,
			TransactionType: d.Action,
			FromProtocol:    d.FromProtocol,
			ToProtocol:      d.ToProtocol,
			Amount:          amountUSD * d.Percent / 100,
			Status:          "simulated",
		})
		if err != nil {
			return err
		}
	}
	return nil
}
