package store

import (
	"context"
	"fmt"
	"time"
)

// GetPortfolioByUser returns the portfolio row for a user id.
func (s *Store) GetPortfolioByUser(ctx context.Context, userID int64) (*Portfolio, error) {
	raw, _, err := s.db.From("portfolios").
		Select("*", "", false).
		Eq("user_id", itoa(userID)).
		Limit(1, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select portfolio for user %d: %w", userID, err)
	}
	var rows []Portfolio
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// CreatePortfolio inserts an empty portfolio for a user.
func (s *Store) CreatePortfolio(ctx context.Context, userID int64) (*Portfolio, error) {
	p := Portfolio{UserID: userID, TotalValue: 0}
	raw, _, err := s.db.From("portfolios").
		Insert(p, false, "", "representation", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert portfolio for user %d: %w", userID, err)
	}
	var rows []Portfolio
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// EnsurePortfolio returns the user's portfolio, creating one if missing.
func (s *Store) EnsurePortfolio(ctx context.Context, userID int64) (*Portfolio, error) {
	p, err := s.GetPortfolioByUser(ctx, userID)
	if err == nil {
		return p, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return s.CreatePortfolio(ctx, userID)
}

// UpdatePortfolioTotal writes a recalculated total value.
func (s *Store) UpdatePortfolioTotal(ctx context.Context, portfolioID int64, total float64) error {
	_, _, err := s.db.From("portfolios").
		Update(map[string]any{
			"total_value": total,
			"updated_at":  time.Now().UTC().Format(time.RFC3339),
		}, "", "").
		Eq("id", itoa(portfolioID)).
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("update portfolio %d total: %w", portfolioID, err)
	}
	return nil
}

// ListHoldings returns every holding of a portfolio.
func (s *Store) ListHoldings(ctx context.Context, portfolioID int64) ([]Holding, error) {
	raw, _, err := s.db.From("holdings").
		Select("*", "", false).
		Eq("portfolio_id", itoa(portfolioID)).
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select holdings for portfolio %d: %w", portfolioID, err)
	}
	var rows []Holding
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetHolding fetches one holding by its natural key within a portfolio.
func (s *Store) GetHolding(ctx context.Context, portfolioID int64, protocol, symbol string) (*Holding, error) {
	raw, _, err := s.db.From("holdings").
		Select("*", "", false).
		Eq("portfolio_id", itoa(portfolioID)).
		Eq("protocol_name", protocol).
		Eq("token_symbol", symbol).
		Limit(1, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select holding %s/%s: %w", protocol, symbol, err)
	}
	var rows []Holding
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// InsertHolding adds a holding row.
func (s *Store) InsertHolding(ctx context.Context, h Holding) (*Holding, error) {
	raw, _, err := s.db.From("holdings").
		Insert(h, false, "", "representation", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert holding %s/%s: %w", h.ProtocolName, h.TokenSymbol, err)
	}
	var rows []Holding
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// UpdateHolding patches amount and value of an existing holding.
func (s *Store) UpdateHolding(ctx context.Context, holdingID int64, amount, valueUSD float64) error {
	_, _, err := s.db.From("holdings").
		Update(map[string]any{
			"amount":     amount,
			"value_usd":  valueUSD,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		}, "", "").
		Eq("id", itoa(holdingID)).
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("update holding %d: %w", holdingID, err)
	}
	return nil
}

// DeleteHolding removes a holding row.
func (s *Store) DeleteHolding(ctx context.Context, holdingID int64) error {
	_, _, err := s.db.From("holdings").
		Delete("", "").
		Eq("id", itoa(holdingID)).
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("delete holding %d: %w", holdingID, err)
	}
	return nil
}

// RecalculateTotal sums the portfolio's holdings and persists the result.
func (s *Store) RecalculateTotal(ctx context.Context, portfolioID int64) (float64, error) {
	holdings, err := s.ListHoldings(ctx, portfolioID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, h := range holdings {
		total += h.ValueUSD
	}
	if err := s.UpdatePortfolioTotal(ctx, portfolioID, total); err != nil {
		return 0, err
	}
	return total, nil
}
