package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/store"
)

const cacheKey = "protocol_data"

// snapshotStore is the slice of the database layer the fetcher needs.
type snapshotStore interface {
	UpsertProtocolData(ctx context.Context, rows []store.ProtocolData) (int, error)
	ListProtocolData(ctx context.Context, limit int, names []string) ([]store.ProtocolData, error)
}

// Metrics counts fetch outcomes for the /api/data/metrics endpoint.
type Metrics struct {
	TotalFetches  int64     `json:"total_fetches"`
	Successful    int64     `json:"successful_fetches"`
	Failed        int64     `json:"failed_fetches"`
	FallbacksUsed int64     `json:"fallbacks_used"`
	LastFetchAt   time.Time `json:"last_fetch_at"`
	LastSource    string    `json:"last_source"`
}

// Service owns the market data pipeline: fetch, normalize, persist, cache.
type Service struct {
	llama *LlamaClient
	gecko *GeckoClient
	db    snapshotStore
	cache *gocache.Cache
	log   *zap.Logger

	mu      sync.Mutex
	metrics Metrics
}

func NewService(llama *LlamaClient, gecko *GeckoClient, db snapshotStore, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		llama: llama,
		gecko: gecko,
		db:    db,
		cache: gocache.New(ttl, 2*ttl),
		log:   log,
	}
}

// Refresh pulls a fresh snapshot, falling back to CoinGecko market data when
// the yield feed fails, then persists and caches it. Returns the rows and
// the source used.
func (s *Service) Refresh(ctx context.Context) ([]store.ProtocolData, string, error) {
	s.mu.Lock()
	s.metrics.TotalFetches++
	s.mu.Unlock()

	source := "defillama"
	var rows []store.ProtocolData

	pools, err := s.llama.Pools(ctx)
	if err == nil {
		rows = Normalize(pools)
	}
	if err != nil || len(rows) == 0 {
		if err != nil {
			s.log.Warn("defillama fetch failed, trying coingecko fallback", zap.Error(err))
		}
		coins, gerr := s.gecko.Markets(ctx, 100)
		if gerr != nil {
			s.recordFetch(false, false, "")
			return nil, "", fmt.Errorf("defillama: %v; coingecko fallback: %w", err, gerr)
		}
		rows = FallbackFromMarkets(coins)
		source = "coingecko"
	}

	if _, uerr := s.db.UpsertProtocolData(ctx, rows); uerr != nil {
		// Serve live data even when persistence fails.
		s.log.Error("persist protocol snapshot failed", zap.Error(uerr))
	}
	s.cache.SetDefault(cacheKey, rows)
	s.recordFetch(true, source == "coingecko", source)

	s.log.Info("market data refreshed",
		zap.String("source", source),
		zap.Int("protocols", len(rows)),
	)
	return rows, source, nil
}

func (s *Service) recordFetch(ok, fallback bool, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.metrics.Successful++
		s.metrics.LastSource = source
		s.metrics.LastFetchAt = time.Now().UTC()
	} else {
		s.metrics.Failed++
	}
	if fallback {
		s.metrics.FallbacksUsed++
	}
}

// Protocols returns the current snapshot: cache first, then database, then a
// live refresh. fresh forces the refresh path; names filters the result.
func (s *Service) Protocols(ctx context.Context, fresh bool, names []string) ([]store.ProtocolData, string, error) {
	if !fresh {
		if cached, ok := s.cache.Get(cacheKey); ok {
			rows := cached.([]store.ProtocolData)
			return filterByName(rows, names), "cache", nil
		}
		rows, err := s.db.ListProtocolData(ctx, maxProtocols, names)
		if err == nil && len(rows) > 0 {
			return rows, "database", nil
		}
		if err != nil {
			s.log.Warn("protocol snapshot read failed", zap.Error(err))
		}
	}

	rows, source, err := s.Refresh(ctx)
	if err != nil {
		return nil, "", err
	}
	return filterByName(rows, names), source, nil
}

// TokenPrice proxies a live spot price lookup.
func (s *Service) TokenPrice(ctx context.Context, symbol string) (float64, error) {
	return s.gecko.TokenPrice(ctx, symbol)
}

// Metrics returns a copy of the fetch counters.
func (s *Service) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func filterByName(rows []store.ProtocolData, names []string) []store.ProtocolData {
	if len(names) == 0 {
		return rows
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[normKey(n)] = true
	}
	out := make([]store.ProtocolData, 0, len(rows))
	for _, r := range rows {
		if want[normKey(r.ProtocolName)] {
			out = append(out, r)
		}
	}
	return out
}

func normKey(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' || r == '-' || r == '_' {
			continue
		}
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}
