package portfolio

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/config"
	"github.com/autodefi-ai/autodefi/internal/store"
)

type fakeRepo struct {
	users    map[string]*store.User
	holdings map[int64]*store.Holding
	totals   map[int64]float64
	tokens   map[string]*store.MarketToken
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    map[string]*store.User{},
		holdings: map[int64]*store.Holding{},
		totals:   map[int64]float64{},
		tokens: map[string]*store.MarketToken{
			"AAVE":  {ProtocolName: "Aave", Symbol: "AAVE", PriceUSD: 90, APY: 4.12},
			"STETH": {ProtocolName: "Lido", Symbol: "stETH", PriceUSD: 2000, APY: 5.24},
		},
	}
}

func (f *fakeRepo) id() int64 { f.nextID++; return f.nextID }

func (f *fakeRepo) EnsureUser(_ context.Context, wallet string) (*store.User, error) {
	if u, ok := f.users[wallet]; ok {
		return u, nil
	}
	u := &store.User{ID: f.id(), WalletAddress: wallet, RiskPreference: "medium"}
	f.users[wallet] = u
	return u, nil
}

func (f *fakeRepo) GetUserByWallet(_ context.Context, wallet string) (*store.User, error) {
	if u, ok := f.users[wallet]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) SetRiskPreference(_ context.Context, wallet, risk string) error {
	u, ok := f.users[wallet]
	if !ok {
		return store.ErrNotFound
	}
	u.RiskPreference = risk
	return nil
}

func (f *fakeRepo) EnsurePortfolio(_ context.Context, userID int64) (*store.Portfolio, error) {
	// one portfolio per user, id = user id + 100
	return &store.Portfolio{ID: userID + 100, UserID: userID}, nil
}

func (f *fakeRepo) ListHoldings(_ context.Context, portfolioID int64) ([]store.Holding, error) {
	var out []store.Holding
	for _, h := range f.holdings {
		if h.PortfolioID == portfolioID {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetHolding(_ context.Context, portfolioID int64, protocol, symbol string) (*store.Holding, error) {
	for _, h := range f.holdings {
		if h.PortfolioID == portfolioID && h.ProtocolName == protocol && h.TokenSymbol == symbol {
			cp := *h
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) InsertHolding(_ context.Context, h store.Holding) (*store.Holding, error) {
	h.ID = f.id()
	f.holdings[h.ID] = &h
	cp := h
	return &cp, nil
}

func (f *fakeRepo) UpdateHolding(_ context.Context, id int64, amount, valueUSD float64) error {
	h, ok := f.holdings[id]
	if !ok {
		return store.ErrNotFound
	}
	h.Amount, h.ValueUSD = amount, valueUSD
	return nil
}

func (f *fakeRepo) DeleteHolding(_ context.Context, id int64) error {
	delete(f.holdings, id)
	return nil
}

func (f *fakeRepo) RecalculateTotal(_ context.Context, portfolioID int64) (float64, error) {
	var total float64
	for _, h := range f.holdings {
		if h.PortfolioID == portfolioID {
			total += h.ValueUSD
		}
	}
	f.totals[portfolioID] = total
	return total, nil
}

func (f *fakeRepo) GetMarketToken(_ context.Context, symbol string) (*store.MarketToken, error) {
	if tok, ok := f.tokens[strings.ToUpper(symbol)]; ok {
		return tok, nil
	}
	return nil, store.ErrNotFound
}

type fakePrices struct {
	prices map[string]float64
}

func (f *fakePrices) TokenPrice(_ context.Context, symbol string) (float64, error) {
	if p, ok := f.prices[strings.ToUpper(symbol)]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("no price for %s", symbol)
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	prices := &fakePrices{prices: map[string]float64{"AAVE": 92.5, "STETH": 2100}}
	return NewService(repo, prices, zap.NewNop()), repo
}

func TestGetSeedsDemoWallet(t *testing.T) {
	svc, _ := newTestService()

	view, err := svc.Get(context.Background(), config.DemoWallet)
	require.NoError(t, err)
	require.Len(t, view.Holdings, 2)
	assert.InDelta(t, 2*92.5+0.8*2100, view.TotalValue, 1e-9)
	assert.Empty(t, view.Message)
}

func TestGetRealWalletStaysEmpty(t *testing.T) {
	svc, repo := newTestService()

	view, err := svc.Get(context.Background(), "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Empty(t, view.Holdings)
	assert.Zero(t, view.TotalValue)
	assert.NotEmpty(t, view.Message)
	assert.Empty(t, repo.holdings)
}

func TestGetSeedsWithFallbackPrices(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakePrices{prices: map[string]float64{}}, zap.NewNop())

	view, err := svc.Get(context.Background(), config.DemoWallet)
	require.NoError(t, err)
	assert.InDelta(t, 2*90.0+0.8*2000.0, view.TotalValue, 1e-9)
}

func TestUpdateHoldingInsertsThenUpdates(t *testing.T) {
	svc, repo := newTestService()
	wallet := "0x2222222222222222222222222222222222222222"

	view, err := svc.UpdateHolding(context.Background(), wallet, "Aave", "AAVE", 3)
	require.NoError(t, err)
	require.Len(t, view.Holdings, 1)
	assert.InDelta(t, 3*92.5, view.TotalValue, 1e-9)

	view, err = svc.UpdateHolding(context.Background(), wallet, "Aave", "AAVE", 1)
	require.NoError(t, err)
	require.Len(t, view.Holdings, 1)
	assert.InDelta(t, 92.5, view.TotalValue, 1e-9)
	assert.Len(t, repo.holdings, 1)
}

func TestUpdateHoldingRejectsNegativeAmount(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.UpdateHolding(context.Background(), "0xabc", "Aave", "AAVE", -1)
	assert.Error(t, err)
}

func TestSetRisk(t *testing.T) {
	svc, repo := newTestService()
	wallet := "0x3333333333333333333333333333333333333333"

	require.NoError(t, svc.SetRisk(context.Background(), wallet, "High"))
	assert.Equal(t, "high", repo.users[wallet].RiskPreference)

	assert.Error(t, svc.SetRisk(context.Background(), wallet, "reckless"))
}

func TestAddDemoHoldingMerges(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Get(context.Background(), config.DemoWallet) // seeds 2.0 AAVE
	require.NoError(t, err)

	view, err := svc.AddDemoHolding(context.Background(), "", "aave", 1.5)
	require.NoError(t, err)

	var aave *store.Holding
	for i := range view.Holdings {
		if view.Holdings[i].TokenSymbol == "AAVE" {
			aave = &view.Holdings[i]
		}
	}
	require.NotNil(t, aave)
	assert.InDelta(t, 3.5, aave.Amount, 1e-9)
	// merged position is priced from the curated table
	assert.InDelta(t, 3.5*90, aave.ValueUSD, 1e-9)
}

func TestDemoHoldingRejectsOtherWallets(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.AddDemoHolding(context.Background(), "0x4444444444444444444444444444444444444444", "AAVE", 1)
	assert.Error(t, err)
}

func TestSetDemoHoldingZeroDeletes(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.Get(context.Background(), config.DemoWallet)
	require.NoError(t, err)
	before := len(repo.holdings)

	view, err := svc.SetDemoHolding(context.Background(), config.DemoWallet, "stETH", 0)
	require.NoError(t, err)
	assert.Len(t, repo.holdings, before-1)
	for _, h := range view.Holdings {
		assert.NotEqual(t, "stETH", h.TokenSymbol)
	}
}

func TestRemoveDemoHolding(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Get(context.Background(), config.DemoWallet)
	require.NoError(t, err)

	view, err := svc.RemoveDemoHolding(context.Background(), config.DemoWallet, "AAVE")
	require.NoError(t, err)
	require.Len(t, view.Holdings, 1)
	assert.Equal(t, "stETH", view.Holdings[0].TokenSymbol)

	_, err = svc.RemoveDemoHolding(context.Background(), config.DemoWallet, "AAVE")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshReprices(t *testing.T) {
	repo := newFakeRepo()
	prices := &fakePrices{prices: map[string]float64{"AAVE": 100, "STETH": 2500}}
	svc := NewService(repo, prices, zap.NewNop())

	_, err := svc.Get(context.Background(), config.DemoWallet)
	require.NoError(t, err)

	prices.prices["AAVE"] = 120
	view, err := svc.Refresh(context.Background(), config.DemoWallet)
	require.NoError(t, err)
	assert.InDelta(t, 2*120+0.8*2500, view.TotalValue, 1e-9)
}
