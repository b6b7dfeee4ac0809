package eth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"))
	assert.False(t, ValidAddress("0x742d"))
	assert.False(t, ValidAddress("not-an-address"))
	assert.False(t, ValidAddress(""))
}

func TestDialEmptyURLReturnsNil(t *testing.T) {
	c, err := Dial(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNativeBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "eth_getBalance", req.Method)

		// 1.5 ETH in wei
		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      json.RawMessage(req.ID),
			"result":  "0x14d1120d7b160000",
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	bal, err := c.NativeBalance(context.Background(), "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, bal.BalanceETH, 1e-9)
	assert.Equal(t, "1500000000000000000", bal.BalanceWei)
}

func TestNativeBalanceRejectsInvalidAddress(t *testing.T) {
	c := &Client{}
	_, err := c.NativeBalance(context.Background(), "nope")
	assert.Error(t, err)
}
