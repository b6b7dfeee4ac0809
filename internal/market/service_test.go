package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/store"
)

type memStore struct {
	upserted []store.ProtocolData
	listed   []store.ProtocolData
}

func (m *memStore) UpsertProtocolData(_ context.Context, rows []store.ProtocolData) (int, error) {
	m.upserted = append(m.upserted, rows...)
	return len(rows), nil
}

func (m *memStore) ListProtocolData(_ context.Context, _ int, _ []string) ([]store.ProtocolData, error) {
	return m.listed, nil
}

const poolsJSON = `{"status":"success","data":[
	{"pool":"l1","chain":"Ethereum","project":"lido","symbol":"STETH","tvlUsd":20000000,"apy":5.2},
	{"pool":"a1","chain":"Ethereum","project":"aave-v3","symbol":"USDC","tvlUsd":9000000,"apy":2.7}
]}`

func TestRefreshFromDeFiLlama(t *testing.T) {
	llamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(poolsJSON))
	}))
	t.Cleanup(llamaSrv.Close)

	db := &memStore{}
	svc := NewService(NewLlamaClient(llamaSrv.URL, ""), NewGeckoClient("http://unused", ""), db, time.Minute, zap.NewNop())

	rows, source, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "defillama", source)
	assert.Len(t, rows, 2)
	assert.Len(t, db.upserted, 2)

	m := svc.Metrics()
	assert.Equal(t, int64(1), m.TotalFetches)
	assert.Equal(t, int64(1), m.Successful)
	assert.Equal(t, int64(0), m.FallbacksUsed)
}

func TestRefreshFallsBackToCoinGecko(t *testing.T) {
	llamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(llamaSrv.Close)

	geckoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"aave","symbol":"aave","name":"Aave","current_price":90,"market_cap":1300000000}]`))
	}))
	t.Cleanup(geckoSrv.Close)

	svc := NewService(NewLlamaClient(llamaSrv.URL, ""), NewGeckoClient(geckoSrv.URL, ""), &memStore{}, time.Minute, zap.NewNop())

	rows, source, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "coingecko", source)
	require.Len(t, rows, 1)
	assert.Equal(t, "Aave", rows[0].ProtocolName)

	m := svc.Metrics()
	assert.Equal(t, int64(1), m.FallbacksUsed)
}

func TestProtocolsServesFromCacheAfterRefresh(t *testing.T) {
	calls := 0
	llamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(poolsJSON))
	}))
	t.Cleanup(llamaSrv.Close)

	svc := NewService(NewLlamaClient(llamaSrv.URL, ""), NewGeckoClient("http://unused", ""), &memStore{}, time.Minute, zap.NewNop())

	_, _, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	rows, source, err := svc.Protocols(context.Background(), false, nil)
	require.NoError(t, err)
	assert.Equal(t, "cache", source)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, calls)
}

func TestProtocolsNameFilter(t *testing.T) {
	llamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(poolsJSON))
	}))
	t.Cleanup(llamaSrv.Close)

	svc := NewService(NewLlamaClient(llamaSrv.URL, ""), NewGeckoClient("http://unused", ""), &memStore{}, time.Minute, zap.NewNop())
	_, _, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	rows, _, err := svc.Protocols(context.Background(), false, []string{"aave v3"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Aave V3", rows[0].ProtocolName)
}

func TestTokenPrice(t *testing.T) {
	geckoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "lido-dao", r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"lido-dao":{"usd":1.82}}`))
	}))
	t.Cleanup(geckoSrv.Close)

	svc := NewService(NewLlamaClient("http://unused", ""), NewGeckoClient(geckoSrv.URL, ""), &memStore{}, time.Minute, zap.NewNop())

	price, err := svc.TokenPrice(context.Background(), "stETH")
	require.NoError(t, err)
	assert.InDelta(t, 1.82, price, 1e-9)

	_, err = svc.TokenPrice(context.Background(), "NOPE")
	assert.Error(t, err)
}
