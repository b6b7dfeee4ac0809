// Package httpapi exposes the AutoDeFi dashboard API over gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/agent"
	"github.com/autodefi-ai/autodefi/internal/alerts"
	"github.com/autodefi-ai/autodefi/internal/config"
	"github.com/autodefi-ai/autodefi/internal/eth"
	"github.com/autodefi-ai/autodefi/internal/market"
	"github.com/autodefi-ai/autodefi/internal/portfolio"
	"github.com/autodefi-ai/autodefi/internal/store"
	"github.com/autodefi-ai/autodefi/internal/vault"
)

// Service interfaces keep handlers testable without the real backends.

type PortfolioService interface {
	Get(ctx context.Context, wallet string) (*portfolio.View, error)
	UpdateHolding(ctx context.Context, wallet, protocol, symbol string, amount float64) (*portfolio.View, error)
	Refresh(ctx context.Context, wallet string) (*portfolio.View, error)
	SetRisk(ctx context.Context, wallet, risk string) error
	AddDemoHolding(ctx context.Context, wallet, symbol string, amount float64) (*portfolio.View, error)
	SetDemoHolding(ctx context.Context, wallet, symbol string, amount float64) (*portfolio.View, error)
	RemoveDemoHolding(ctx context.Context, wallet, symbol string) (*portfolio.View, error)
}

type MarketService interface {
	Protocols(ctx context.Context, fresh bool, names []string) ([]store.ProtocolData, string, error)
	Refresh(ctx context.Context) ([]store.ProtocolData, string, error)
	Metrics() market.Metrics
}

type AgentService interface {
	Analyze(ctx context.Context, wallet string) (*agent.Analysis, error)
	Simulate(ctx context.Context, wallet string) (*agent.SimulationResult, error)
	ExecuteStub(ctx context.Context, wallet string, dirs []agent.Direction, amountUSD float64) error
}

type VaultService interface {
	List(ctx context.Context) ([]store.Vault, error)
	Get(ctx context.Context, id int64) (*store.Vault, error)
	Generate(ctx context.Context, risk, name string) (*store.Vault, error)
	Refresh(ctx context.Context, vaultID int64) (*vault.RefreshResult, error)
	SimulateDeposit(ctx context.Context, vaultID int64, amountUSD float64, subscribe bool) (*vault.DepositSimulation, error)
	Logs(ctx context.Context, vaultID int64, limit int) ([]store.VaultLog, error)
}

type AlertService interface {
	Alerts(ctx context.Context) ([]alerts.Alert, error)
	Summarize(ctx context.Context) (*alerts.Summary, error)
}

// Services bundles everything the router needs.
type Services struct {
	Portfolio PortfolioService
	Market    MarketService
	Agent     AgentService
	Vaults    VaultService
	Alerts    AlertService
	Chain     *eth.Client
}

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	cfg    *config.Config
	log    *zap.Logger
	svcs   Services
	engine *gin.Engine
	http   *http.Server
}

func NewServer(cfg *config.Config, svcs Services, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(corsPolicy(cfg.CORSOrigins))
	engine.Use(rateLimit(cfg.RateLimitPerMin))

	s := &Server{cfg: cfg, log: log, svcs: svcs, engine: engine}
	s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is canceled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server draining")
	return s.http.Shutdown(shutdownCtx)
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }
