package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"
)

var orderDesc = postgrest.OrderOpts{Ascending: false}

// upsertBatchSize keeps PostgREST payloads comfortably under body limits.
const upsertBatchSize = 100

// UpsertProtocolData writes a market snapshot, batched, keyed on
// protocol_name.
func (s *Store) UpsertProtocolData(ctx context.Context, rows []ProtocolData) (int, error) {
	written := 0
	for start := 0; start < len(rows); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		_, _, err := s.db.From("protocol_data").
			Insert(batch, true, "protocol_name", "minimal", "").
			ExecuteWithContext(ctx)
		if err != nil {
			return written, fmt.Errorf("upsert protocol_data batch %d-%d: %w", start, end, err)
		}
		written += len(batch)
	}
	s.log.Debug("protocol data upserted", zap.Int("rows", written))
	return written, nil
}

// ListProtocolData returns stored protocol snapshots ordered by APY.
func (s *Store) ListProtocolData(ctx context.Context, limit int, names []string) ([]ProtocolData, error) {
	q := s.db.From("protocol_data").Select("*", "", false)
	if len(names) > 0 {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = `"` + n + `"`
		}
		q = q.In("protocol_name", quoted)
	}
	q = q.Order("apy", &orderDesc)
	if limit > 0 {
		q = q.Limit(limit, "")
	}
	raw, _, err := q.ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select protocol_data: %w", err)
	}
	var rows []ProtocolData
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListMarketTokens returns the curated token price list.
func (s *Store) ListMarketTokens(ctx context.Context) ([]MarketToken, error) {
	raw, _, err := s.db.From("protocol_market_data").
		Select("*", "", false).
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select protocol_market_data: %w", err)
	}
	var rows []MarketToken
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetMarketToken finds a curated token by symbol, case-insensitively.
func (s *Store) GetMarketToken(ctx context.Context, symbol string) (*MarketToken, error) {
	raw, _, err := s.db.From("protocol_market_data").
		Select("*", "", false).
		Ilike("symbol", symbol).
		Limit(1, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select market token %s: %w", symbol, err)
	}
	var rows []MarketToken
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	tok, err := one(rows)
	if err != nil {
		return nil, fmt.Errorf("token %s: %w", strings.ToUpper(symbol), err)
	}
	return tok, nil
}
