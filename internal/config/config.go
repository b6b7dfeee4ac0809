// Package config loads AutoDeFi backend settings from environment variables
// and an optional config.yaml, environment taking precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DemoWallet is the placeholder address used by the dashboard's demo mode.
// Only this wallet ever receives seeded demo holdings.
const DemoWallet = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb"

const groqBaseURL = "https://api.groq.com/openai/v1"

type Config struct {
	// External API keys.
	GroqAPIKey      string `mapstructure:"groq_api_key"`
	DefiLlamaAPIKey string `mapstructure:"defillama_api_key"`
	CoinGeckoAPIKey string `mapstructure:"coingecko_api_key"`

	// Supabase (PostgREST) connection.
	SupabaseURL string `mapstructure:"supabase_url"`
	SupabaseKey string `mapstructure:"supabase_key"`

	// HTTP server.
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	// AI agent.
	AIModel            string  `mapstructure:"ai_model"`
	AITemperature      float32 `mapstructure:"ai_temperature"`
	FallbackRuleEngine bool    `mapstructure:"fallback_to_rule_engine"`

	// External API endpoints (overridable for tests).
	DefiLlamaURL string `mapstructure:"defillama_url"`
	CoinGeckoURL string `mapstructure:"coingecko_url"`
	GroqBaseURL  string `mapstructure:"groq_base_url"`

	// Ethereum JSON-RPC provider for on-chain balance reads.
	EthRPCURL string `mapstructure:"eth_rpc_url"`

	// Caching and rate limiting.
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_minute"`

	// Vault scheduler.
	VaultUpdateInterval   time.Duration `mapstructure:"vault_update_interval"`
	VaultRefreshOnStartup bool          `mapstructure:"vault_refresh_on_startup"`
}

// Load reads configuration from AUTODEFI_* environment variables and, when
// present, a config.yaml in the working directory or /etc/autodefi.
func Load() (*Config, error) {
	v := viper.New()

	// secrets default empty so env overrides reach Unmarshal
	v.SetDefault("groq_api_key", "")
	v.SetDefault("defillama_api_key", "")
	v.SetDefault("coingecko_api_key", "")
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_key", "")
	v.SetDefault("eth_rpc_url", "")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("cors_origins", []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"https://autodefi.ai",
	})
	v.SetDefault("ai_model", "llama-3.1-70b-versatile")
	v.SetDefault("ai_temperature", 0.3)
	v.SetDefault("fallback_to_rule_engine", true)
	v.SetDefault("defillama_url", "https://yields.llama.fi/pools")
	v.SetDefault("coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("groq_base_url", groqBaseURL)
	v.SetDefault("cache_ttl", 15*time.Minute)
	v.SetDefault("rate_limit_per_minute", 60)
	v.SetDefault("vault_update_interval", 6*time.Hour)
	v.SetDefault("vault_refresh_on_startup", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/autodefi")

	v.SetEnvPrefix("autodefi")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings required to reach the database. API keys are
// optional: the agent and vault services degrade to their rule engines.
func (c *Config) Validate() error {
	if c.SupabaseURL == "" || c.SupabaseKey == "" {
		return errors.New("supabase_url and supabase_key are required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("rate_limit_per_minute must be positive, got %d", c.RateLimitPerMin)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RestURL returns the PostgREST endpoint for the configured Supabase project.
func (c *Config) RestURL() string {
	return strings.TrimRight(c.SupabaseURL, "/") + "/rest/v1"
}

// LogStatus reports which integrations are configured, without leaking keys.
func (c *Config) LogStatus(log *zap.Logger) {
	log.Info("configuration loaded",
		zap.String("addr", c.Addr()),
		zap.String("ai_model", c.AIModel),
		zap.Bool("groq_configured", c.GroqAPIKey != ""),
		zap.Bool("coingecko_key", c.CoinGeckoAPIKey != ""),
		zap.Bool("supabase_configured", c.SupabaseURL != "" && c.SupabaseKey != ""),
		zap.Bool("eth_rpc_configured", c.EthRPCURL != ""),
		zap.Duration("cache_ttl", c.CacheTTL),
		zap.Int("rate_limit_per_minute", c.RateLimitPerMin),
		zap.Duration("vault_update_interval", c.VaultUpdateInterval),
	)
}
