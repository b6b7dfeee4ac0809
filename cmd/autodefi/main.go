// Command autodefi runs the AutoDeFi.AI dashboard backend and its
// operational one-shot tasks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/agent"
	"github.com/autodefi-ai/autodefi/internal/alerts"
	"github.com/autodefi-ai/autodefi/internal/config"
	"github.com/autodefi-ai/autodefi/internal/eth"
	"github.com/autodefi-ai/autodefi/internal/httpapi"
	"github.com/autodefi-ai/autodefi/internal/market"
	"github.com/autodefi-ai/autodefi/internal/portfolio"
	"github.com/autodefi-ai/autodefi/internal/store"
	"github.com/autodefi-ai/autodefi/internal/vault"
)

var (
	logger  *zap.Logger
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:          "autodefi",
		Short:        "AI-assisted DeFi portfolio dashboard backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			if verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
			}
			var err error
			logger, err = zcfg.Build()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(serveCmd(), refreshDataCmd(), analyzeCmd(), generateVaultCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// backend bundles every wired service for one process.
type backend struct {
	cfg       *config.Config
	store     *store.Store
	market    *market.Service
	portfolio *portfolio.Service
	agent     *agent.Service
	vaults    *vault.Service
	alerts    *alerts.Service
	chain     *eth.Client
}

func buildBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LogStatus(logger)

	db := store.New(cfg.RestURL(), cfg.SupabaseKey, logger.Named("store"))

	llama := market.NewLlamaClient(cfg.DefiLlamaURL, cfg.DefiLlamaAPIKey)
	gecko := market.NewGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey)
	mkt := market.NewService(llama, gecko, db, cfg.CacheTTL, logger.Named("market"))

	pf := portfolio.NewService(db, mkt, logger.Named("portfolio"))

	var chat agent.ChatClient
	if g := agent.NewGroqClient(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.AIModel); g != nil {
		chat = g
	} else {
		logger.Warn("no groq api key configured, using rule engine only")
	}
	ag := agent.NewService(db, mkt, chat, agent.Options{
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		Fallback:    cfg.FallbackRuleEngine,
	}, logger.Named("agent"))

	vt := vault.NewService(db, mkt, chat, cfg.AIModel, logger.Named("vault"))
	al := alerts.NewService(llama, logger.Named("alerts"))

	chain, err := eth.Dial(ctx, cfg.EthRPCURL)
	if err != nil {
		// on-chain reads are optional; the rest of the API still works
		logger.Warn("eth rpc unavailable", zap.Error(err))
	}

	return &backend{
		cfg:       cfg,
		store:     db,
		market:    mkt,
		portfolio: pf,
		agent:     ag,
		vaults:    vt,
		alerts:    al,
		chain:     chain,
	}, nil
}

func (b *backend) close() {
	b.chain.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the vault refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			b, err := buildBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			if err := b.store.Ping(ctx); err != nil {
				logger.Warn("database not reachable at startup", zap.Error(err))
			}

			sched := vault.NewScheduler(b.vaults, b.cfg.VaultUpdateInterval, b.cfg.VaultRefreshOnStartup, logger.Named("scheduler"))
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			srv := httpapi.NewServer(b.cfg, httpapi.Services{
				Portfolio: b.portfolio,
				Market:    b.market,
				Agent:     b.agent,
				Vaults:    b.vaults,
				Alerts:    b.alerts,
				Chain:     b.chain,
			}, logger.Named("http"))

			return srv.Run(ctx)
		},
	}
}

func refreshDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-data",
		Short: "Fetch, normalize and store a fresh market snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			b, err := buildBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			rows, source, err := b.market.Refresh(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("refreshed %d protocols from %s\n", len(rows), source)
			return nil
		},
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func analyzeCmd() *cobra.Command {
	var wallet string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one AI portfolio analysis and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			b, err := buildBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			analysis, err := b.agent.Analyze(ctx, wallet)
			if err != nil {
				return err
			}
			return printJSON(analysis)
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", config.DemoWallet, "wallet address to analyze")
	return cmd
}

func generateVaultCmd() *cobra.Command {
	var risk, name string
	cmd := &cobra.Command{
		Use:   "generate-vault",
		Short: "Generate and store one vault for a risk level",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			b, err := buildBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			v, err := b.vaults.Generate(ctx, risk, name)
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
	cmd.Flags().StringVar(&risk, "risk", "medium", "risk level: low, medium or high")
	cmd.Flags().StringVar(&name, "name", "", "override the generated vault name")
	return cmd
}
