// Package alerts synthesizes market movement alerts from the live pool
// feed. Changes are sampled rather than tracked: the dashboard needs
// plausible activity, not a price oracle.
package alerts

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/market"
)

const (
	cacheKey     = "alerts"
	cacheTTL     = 2 * time.Minute
	poolUniverse = 100
	sampleSize   = 8
)

// PoolSource is the raw yield feed the alerts sample from.
type PoolSource interface {
	Pools(ctx context.Context) ([]market.Pool, error)
}

// Alert is one synthesized market movement.
type Alert struct {
	ID            string    `json:"id"`
	Protocol      string    `json:"protocol"`
	Type          string    `json:"type"`
	ChangePercent float64   `json:"change_percent"`
	Severity      string    `json:"severity"`
	Message       string    `json:"message"`
	AIReaction    string    `json:"ai_reaction"`
	Timestamp     time.Time `json:"timestamp"`
}

type Service struct {
	pools PoolSource
	cache *gocache.Cache
	log   *zap.Logger

	// rnd is not safe for concurrent use; generate runs under mu
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewService(pools PoolSource, log *zap.Logger) *Service {
	return &Service{
		pools: pools,
		cache: gocache.New(cacheTTL, 2*cacheTTL),
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		log:   log,
	}
}

// severityFor tiers an alert by the magnitude of its change.
func severityFor(changePercent float64) string {
	abs := math.Abs(changePercent)
	switch {
	case abs >= 2:
		return "high"
	case abs >= 1:
		return "medium"
	default:
		return "low"
	}
}

var severityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

var reactionsUp = []string{
	"Yield momentum looks sustainable given the pool's TVL depth.",
	"Worth watching: inflows often follow a move like this.",
	"The agent flags this as a candidate for the next rebalance pass.",
	"Short-term spike; confirm it holds before chasing the rate.",
}

var reactionsDown = []string{
	"Yield compression here reduces the edge over staking baselines.",
	"Positions in this pool should be reviewed at the next refresh.",
	"Likely rate normalization after recent inflows.",
	"The agent sees no urgent exit signal at this magnitude.",
}

func (s *Service) reaction(changePercent float64) string {
	pool := reactionsDown
	if changePercent >= 0 {
		pool = reactionsUp
	}
	return pool[s.rnd.Intn(len(pool))]
}

// Alerts returns the current alert set, regenerating it when the short
// cache lapses.
func (s *Service) Alerts(ctx context.Context) ([]Alert, error) {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]Alert), nil
	}

	pools, err := s.pools.Pools(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pools: %w", err)
	}
	alerts := s.generate(pools)
	s.cache.SetDefault(cacheKey, alerts)
	s.log.Debug("alerts regenerated", zap.Int("count", len(alerts)))
	return alerts, nil
}

func (s *Service) generate(pools []market.Pool) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	eligible := make([]market.Pool, 0, len(pools))
	for _, p := range pools {
		if p.Project != "" && p.TVLUsd > 0 {
			eligible = append(eligible, p)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].TVLUsd > eligible[j].TVLUsd })
	if len(eligible) > poolUniverse {
		eligible = eligible[:poolUniverse]
	}

	n := sampleSize
	if n > len(eligible) {
		n = len(eligible)
	}
	s.rnd.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	picked := eligible[:n]

	now := time.Now().UTC()
	alerts := make([]Alert, 0, n)
	for _, p := range picked {
		change := (s.rnd.Float64()*2 - 1) * 3 // -3%..+3%
		kind := "apy_drop"
		verb := "dropped"
		if change >= 0 {
			kind = "apy_spike"
			verb = "climbed"
		}
		// stagger timestamps so the feed reads like a stream
		ts := now.Add(-time.Duration(s.rnd.Intn(110)+10) * time.Minute)
		alerts = append(alerts, Alert{
			ID:            fmt.Sprintf("%d-%s", now.Unix(), p.Pool),
			Protocol:      p.Project,
			Type:          kind,
			ChangePercent: change,
			Severity:      severityFor(change),
			Message:       fmt.Sprintf("%s APY %s %.2f%% in the last 24h", p.Project, verb, math.Abs(change)),
			AIReaction:    s.reaction(change),
			Timestamp:     ts,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		ri, rj := severityRank[alerts[i].Severity], severityRank[alerts[j].Severity]
		if ri != rj {
			return ri < rj
		}
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
	return alerts
}

// Summary aggregates the current alert set for the stats endpoint.
type Summary struct {
	Total           int            `json:"total"`
	BySeverity      map[string]int `json:"by_severity"`
	ByType          map[string]int `json:"by_type"`
	AvgAbsoluteMove float64        `json:"avg_absolute_move"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	alerts, err := s.Alerts(ctx)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		Total:       len(alerts),
		BySeverity:  map[string]int{},
		ByType:      map[string]int{},
		GeneratedAt: time.Now().UTC(),
	}
	var absTotal float64
	for _, a := range alerts {
		sum.BySeverity[a.Severity]++
		sum.ByType[a.Type]++
		absTotal += math.Abs(a.ChangePercent)
	}
	if len(alerts) > 0 {
		sum.AvgAbsoluteMove = absTotal / float64(len(alerts))
	}
	return sum, nil
}
