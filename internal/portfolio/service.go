// Package portfolio manages user portfolios and their holdings, including
// the seeded demo portfolio used by the dashboard's demo mode.
package portfolio

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/autodefi-ai/autodefi/internal/config"
	"github.com/autodefi-ai/autodefi/internal/store"
)

// Repo is the slice of the database layer the portfolio service uses.
type Repo interface {
	EnsureUser(ctx context.Context, wallet string) (*store.User, error)
	GetUserByWallet(ctx context.Context, wallet string) (*store.User, error)
	SetRiskPreference(ctx context.Context, wallet, risk string) error
	EnsurePortfolio(ctx context.Context, userID int64) (*store.Portfolio, error)
	ListHoldings(ctx context.Context, portfolioID int64) ([]store.Holding, error)
	GetHolding(ctx context.Context, portfolioID int64, protocol, symbol string) (*store.Holding, error)
	InsertHolding(ctx context.Context, h store.Holding) (*store.Holding, error)
	UpdateHolding(ctx context.Context, holdingID int64, amount, valueUSD float64) error
	DeleteHolding(ctx context.Context, holdingID int64) error
	RecalculateTotal(ctx context.Context, portfolioID int64) (float64, error)
	GetMarketToken(ctx context.Context, symbol string) (*store.MarketToken, error)
}

// PriceSource provides live spot prices for tracked tokens.
type PriceSource interface {
	TokenPrice(ctx context.Context, symbol string) (float64, error)
}

// View is the portfolio payload returned to the frontend.
type View struct {
	WalletAddress  string          `json:"wallet_address"`
	RiskPreference string          `json:"risk_preference"`
	TotalValue     float64         `json:"total_value"`
	Holdings       []store.Holding `json:"holdings"`
	Message        string          `json:"message,omitempty"`
}

type Service struct {
	repo   Repo
	prices PriceSource
	log    *zap.Logger
}

func NewService(repo Repo, prices PriceSource, log *zap.Logger) *Service {
	return &Service{repo: repo, prices: prices, log: log}
}

// demo holdings seeded for the demo wallet only
var demoHoldings = []store.Holding{
	{ProtocolName: "Aave", TokenSymbol: "AAVE", Amount: 2.0, APY: 4.12},
	{ProtocolName: "Lido", TokenSymbol: "stETH", Amount: 0.8, APY: 5.24},
}

// prices used when the live lookup fails during demo seeding
var demoFallbackPrices = map[string]float64{
	"AAVE":  90.0,
	"STETH": 2000.0,
}

// Get returns the wallet's portfolio, creating the user and an empty
// portfolio on first contact. The demo wallet is seeded with holdings.
func (s *Service) Get(ctx context.Context, wallet string) (*View, error) {
	user, err := s.repo.EnsureUser(ctx, wallet)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.EnsurePortfolio(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.repo.ListHoldings(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 && wallet == config.DemoWallet {
		if holdings, err = s.seedDemo(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	view := &View{
		WalletAddress:  wallet,
		RiskPreference: user.RiskPreference,
		Holdings:       holdings,
	}
	for _, h := range holdings {
		view.TotalValue += h.ValueUSD
	}
	if len(holdings) == 0 {
		view.Holdings = []store.Holding{}
		view.Message = "No holdings found for this wallet. Connect the demo wallet to explore."
	}
	return view, nil
}

func (s *Service) seedDemo(ctx context.Context, portfolioID int64) ([]store.Holding, error) {
	seeded := make([]store.Holding, 0, len(demoHoldings))
	for _, h := range demoHoldings {
		price, err := s.prices.TokenPrice(ctx, h.TokenSymbol)
		if err != nil || price <= 0 {
			price = demoFallbackPrices[strings.ToUpper(h.TokenSymbol)]
			s.log.Warn("demo seed price lookup failed, using fallback",
				zap.String("token", h.TokenSymbol),
				zap.Float64("price", price),
			)
		}
		h.PortfolioID = portfolioID
		h.ValueUSD = h.Amount * price
		inserted, err := s.repo.InsertHolding(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("seed demo holding %s: %w", h.TokenSymbol, err)
		}
		seeded = append(seeded, *inserted)
	}
	if _, err := s.repo.RecalculateTotal(ctx, portfolioID); err != nil {
		return nil, err
	}
	s.log.Info("demo portfolio seeded", zap.Int64("portfolio_id", portfolioID))
	return seeded, nil
}

// UpdateHolding sets the amount of a holding, pricing it live. A missing
// holding is created.
func (s *Service) UpdateHolding(ctx context.Context, wallet, protocol, symbol string, amount float64) (*View, error) {
	if amount < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	user, err := s.repo.EnsureUser(ctx, wallet)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.EnsurePortfolio(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	price, err := s.prices.TokenPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", symbol, err)
	}

	existing, err := s.repo.GetHolding(ctx, p.ID, protocol, symbol)
	switch {
	case err == nil:
		if err := s.repo.UpdateHolding(ctx, existing.ID, amount, amount*price); err != nil {
			return nil, err
		}
	case err == store.ErrNotFound:
		_, err = s.repo.InsertHolding(ctx, store.Holding{
			PortfolioID:  p.ID,
			ProtocolName: protocol,
			TokenSymbol:  symbol,
			Amount:       amount,
			ValueUSD:     amount * price,
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
	return s.Get(ctx, wallet)
}

// Refresh reprices every holding at current market prices.
func (s *Service) Refresh(ctx context.Context, wallet string) (*View, error) {
	user, err := s.repo.GetUserByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.EnsurePortfolio(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.repo.ListHoldings(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	// price lookups hit an external API, so run them concurrently
	prices := make([]float64, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, h := range holdings {
		g.Go(func() error {
			price, err := s.prices.TokenPrice(gctx, h.TokenSymbol)
			if err != nil || price <= 0 {
				s.log.Warn("skipping reprice, no live price",
					zap.String("token", h.TokenSymbol), zap.Error(err))
				return nil
			}
			prices[i] = price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, h := range holdings {
		if prices[i] <= 0 {
			continue
		}
		if err := s.repo.UpdateHolding(ctx, h.ID, h.Amount, h.Amount*prices[i]); err != nil {
			return nil, err
		}
	}
	if _, err := s.repo.RecalculateTotal(ctx, p.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, wallet)
}

// SetRisk updates the wallet's stored risk preference.
func (s *Service) SetRisk(ctx context.Context, wallet, risk string) error {
	risk = strings.ToLower(risk)
	switch risk {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("invalid risk preference %q", risk)
	}
	if _, err := s.repo.EnsureUser(ctx, wallet); err != nil {
		return err
	}
	return s.repo.SetRiskPreference(ctx, wallet, risk)
}
