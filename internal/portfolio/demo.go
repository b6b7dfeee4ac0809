package portfolio

import (
	"context"
	"fmt"

	"github.com/autodefi-ai/autodefi/internal/config"
	"github.com/autodefi-ai/autodefi/internal/store"
)

// Demo holding mutations price tokens against the curated
// protocol_market_data table instead of live APIs, so the demo behaves
// deterministically. They only operate on the demo wallet.

func (s *Service) demoPortfolio(ctx context.Context, wallet string) (*store.Portfolio, error) {
	if wallet == "" {
		wallet = config.DemoWallet
	}
	if wallet != config.DemoWallet {
		return nil, fmt.Errorf("demo holdings are only available for the demo wallet")
	}
	user, err := s.repo.EnsureUser(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return s.repo.EnsurePortfolio(ctx, user.ID)
}

// AddDemoHolding adds amount of a curated token to the demo portfolio,
// merging with an existing position of the same token.
func (s *Service) AddDemoHolding(ctx context.Context, wallet, symbol string, amount float64) (*View, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	p, err := s.demoPortfolio(ctx, wallet)
	if err != nil {
		return nil, err
	}
	tok, err := s.repo.GetMarketToken(ctx, symbol)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetHolding(ctx, p.ID, tok.ProtocolName, tok.Symbol)
	switch {
	case err == nil:
		newAmount := existing.Amount + amount
		if err := s.repo.UpdateHolding(ctx, existing.ID, newAmount, newAmount*tok.PriceUSD); err != nil {
			return nil, err
		}
	case err == store.ErrNotFound:
		_, err = s.repo.InsertHolding(ctx, store.Holding{
			PortfolioID:  p.ID,
			ProtocolName: tok.ProtocolName,
			TokenSymbol:  tok.Symbol,
			Amount:       amount,
			ValueUSD:     amount * tok.PriceUSD,
			APY:          tok.APY,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if _, err := s.repo.RecalculateTotal(ctx, p.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, config.DemoWallet)
}

// SetDemoHolding overwrites the amount of an existing demo position.
func (s *Service) SetDemoHolding(ctx context.Context, wallet, symbol string, amount float64) (*View, error) {
	if amount < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	p, err := s.demoPortfolio(ctx, wallet)
	if err != nil {
		return nil, err
	}
	tok, err := s.repo.GetMarketToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetHolding(ctx, p.ID, tok.ProtocolName, tok.Symbol)
	if err != nil {
		return nil, err
	}

	if amount == 0 {
		err = s.repo.DeleteHolding(ctx, existing.ID)
	} else {
		err = s.repo.UpdateHolding(ctx, existing.ID, amount, amount*tok.PriceUSD)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.RecalculateTotal(ctx, p.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, config.DemoWallet)
}

// RemoveDemoHolding deletes a demo position entirely.
func (s *Service) RemoveDemoHolding(ctx context.Context, wallet, symbol string) (*View, error) {
	p, err := s.demoPortfolio(ctx, wallet)
	if err != nil {
		return nil, err
	}
	tok, err := s.repo.GetMarketToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetHolding(ctx, p.ID, tok.ProtocolName, tok.Symbol)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteHolding(ctx, existing.ID); err != nil {
		return nil, err
	}
	if _, err := s.repo.RecalculateTotal(ctx, p.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, config.DemoWallet)
}
