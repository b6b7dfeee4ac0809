// Package eth reads native balances from an Ethereum JSON-RPC provider.
package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ValidAddress reports whether s is a plausible hex Ethereum address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Balance is a native ETH balance for one address.
type Balance struct {
	Address    string  `json:"address"`
	BalanceWei string  `json:"balance_wei"`
	BalanceETH float64 `json:"balance_eth"`
}

// Client wraps a JSON-RPC connection. A nil Client means no provider is
// configured.
type Client struct {
	ec *ethclient.Client
}

// Dial connects to the provider. An empty URL yields a nil client.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, nil
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}
	return &Client{ec: ec}, nil
}

var weiPerEth = new(big.Float).SetFloat64(1e18)

// NativeBalance fetches the latest native balance of an address.
func (c *Client) NativeBalance(ctx context.Context, address string) (*Balance, error) {
	if !ValidAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	addr := common.HexToAddress(address)

	wei, err := c.ec.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", addr.Hex(), err)
	}

	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth).Float64()
	return &Balance{
		Address:    addr.Hex(),
		BalanceWei: wei.String(),
		BalanceETH: eth,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c != nil && c.ec != nil {
		c.ec.Close()
	}
}
