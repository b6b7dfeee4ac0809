package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeREST is a minimal PostgREST stand-in that records requests and serves
// canned responses per table.
type fakeREST struct {
	mu        sync.Mutex
	requests  []*http.Request
	bodies    [][]byte
	responses map[string]string
}

func newFakeREST(t *testing.T) (*fakeREST, *Store) {
	t.Helper()
	f := &fakeREST{responses: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		f.requests = append(f.requests, r.Clone(r.Context()))
		f.bodies = append(f.bodies, body)
		resp, ok := f.responses[r.Method+" "+r.URL.Path]
		if !ok {
			resp = "[]"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return f, New(srv.URL, "test-key", zap.NewNop())
}

func (f *fakeREST) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestGetUserByWalletNotFound(t *testing.T) {
	_, s := newFakeREST(t)

	_, err := s.GetUserByWallet(context.Background(), "0xabc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureUserCreatesOnFirstContact(t *testing.T) {
	f, s := newFakeREST(t)
	f.responses["POST /users"] = `[{"id":7,"wallet_address":"0xabc","risk_preference":"medium"}]`

	u, err := s.EnsureUser(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "medium", u.RiskPreference)
	// one GET that found nothing, then one POST
	assert.Equal(t, 2, f.count())
}

func TestEnsureUserReturnsExisting(t *testing.T) {
	f, s := newFakeREST(t)
	f.responses["GET /users"] = `[{"id":3,"wallet_address":"0xabc","risk_preference":"high"}]`

	u, err := s.EnsureUser(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)
	assert.Equal(t, "high", u.RiskPreference)
	assert.Equal(t, 1, f.count())
}

func TestRecalculateTotalSumsHoldings(t *testing.T) {
	f, s := newFakeREST(t)
	f.responses["GET /holdings"] = `[
		{"id":1,"portfolio_id":5,"protocol_name":"Aave","token_symbol":"AAVE","amount":2,"value_usd":180.5,"apy":4.12},
		{"id":2,"portfolio_id":5,"protocol_name":"Lido","token_symbol":"stETH","amount":0.8,"value_usd":2100.25,"apy":5.24}
	]`

	total, err := s.RecalculateTotal(context.Background(), 5)
	require.NoError(t, err)
	assert.InDelta(t, 2280.75, total, 1e-9)
}

func TestUpsertProtocolDataBatches(t *testing.T) {
	f, s := newFakeREST(t)

	rows := make([]ProtocolData, 250)
	for i := range rows {
		rows[i] = ProtocolData{ProtocolName: "p", Chain: "Ethereum"}
	}
	n, err := s.UpsertProtocolData(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, 3, f.count())

	// each request body must itself be a valid JSON array of at most 100 rows
	for _, b := range f.bodies {
		var batch []json.RawMessage
		require.NoError(t, json.Unmarshal(b, &batch))
		assert.LessOrEqual(t, len(batch), 100)
	}
}

func TestGetMarketTokenCaseInsensitive(t *testing.T) {
	f, s := newFakeREST(t)
	f.responses["GET /protocol_market_data"] = `[{"protocol_name":"Aave","symbol":"AAVE","price_usd":92.3,"apy":4.1}]`

	tok, err := s.GetMarketToken(context.Background(), "aave")
	require.NoError(t, err)
	assert.Equal(t, "AAVE", tok.Symbol)
	assert.InDelta(t, 92.3, tok.PriceUSD, 1e-9)
}
