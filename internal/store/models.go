package store

import "encoding/json"

// Row types mirror the Supabase tables. Timestamps stay as the ISO strings
// PostgREST returns; nothing in the backend does date arithmetic on them.

type User struct {
	ID             int64  `json:"id,omitempty"`
	WalletAddress  string `json:"wallet_address"`
	RiskPreference string `json:"risk_preference"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type Portfolio struct {
	ID         int64   `json:"id,omitempty"`
	UserID     int64   `json:"user_id"`
	TotalValue float64 `json:"total_value"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
}

type Holding struct {
	ID           int64   `json:"id,omitempty"`
	PortfolioID  int64   `json:"portfolio_id"`
	ProtocolName string  `json:"protocol_name"`
	TokenSymbol  string  `json:"token_symbol"`
	Amount       float64 `json:"amount"`
	ValueUSD     float64 `json:"value_usd"`
	APY          float64 `json:"apy"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// ProtocolData is the normalized market snapshot upserted by the data fetcher.
type ProtocolData struct {
	ProtocolName string          `json:"protocol_name"`
	Chain        string          `json:"chain"`
	APY          float64         `json:"apy"`
	TVL          float64         `json:"tvl"`
	Category     string          `json:"category"`
	Data         json.RawMessage `json:"data,omitempty"`
	FetchedAt    string          `json:"fetched_at"`
}

// MarketToken is a row of protocol_market_data, the curated token list the
// demo holding endpoints price against.
type MarketToken struct {
	ProtocolName string  `json:"protocol_name"`
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"price_usd"`
	APY          float64 `json:"apy"`
}

type Allocation struct {
	ProtocolName string  `json:"protocol_name"`
	Percent      float64 `json:"percent"`
}

type Vault struct {
	ID            int64        `json:"id,omitempty"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	RiskLevel     string       `json:"risk_level"`
	ExpectedAPY   float64      `json:"expected_apy"`
	Allocations   []Allocation `json:"allocations"`
	AIDescription string       `json:"ai_description"`
	LastUpdated   string       `json:"last_updated,omitempty"`
	CreatedAt     string       `json:"created_at,omitempty"`
}

type VaultLog struct {
	ID         int64           `json:"id,omitempty"`
	VaultID    int64           `json:"vault_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Summary    string          `json:"summary"`
	Confidence float64         `json:"confidence"`
	AIModel    string          `json:"ai_model"`
	CreatedAt  string          `json:"created_at,omitempty"`
}

type VaultSubscription struct {
	ID            int64   `json:"id,omitempty"`
	VaultID       int64   `json:"vault_id"`
	DepositAmount float64 `json:"deposit_amount"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

type DecisionLog struct {
	ID             int64           `json:"id,omitempty"`
	UserID         int64           `json:"user_id"`
	Recommendation json.RawMessage `json:"recommendation"`
	Explanation    string          `json:"explanation"`
	Confidence     float64         `json:"confidence"`
	Executed       bool            `json:"executed"`
	CreatedAt      string          `json:"created_at,omitempty"`
}

type TransactionLog struct {
	ID              int64   `json:"id,omitempty"`
	UserID          int64   `json:"user_id"`
	TransactionType string  `json:"transaction_type"`
	FromProtocol    string  `json:"from_protocol"`
	ToProtocol      string  `json:"to_protocol"`
	Amount          float64 `json:"amount"`
	Status          string  `json:"status"`
	TxHash          *string `json:"tx_hash"`
}
