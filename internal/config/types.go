package config

import (
	"fmt"
	"time"

	"github.com/vilenarios/token-swapper/internal/domain"
)

// Config is the full swapper configuration.
type Config struct {
	App       AppConfig         `mapstructure:"app"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Pair      PairConfig        `mapstructure:"pair"`
	Policy    PolicyConfig      `mapstructure:"policy"`
	Oracle    OracleConfig      `mapstructure:"oracle"`
	Wallet    WalletConfig      `mapstructure:"wallet"`
	Routing   RoutingConfig     `mapstructure:"routing"`
	Execution ExecutionConfig   `mapstructure:"execution"`
	Ledger    LedgerConfig      `mapstructure:"ledger"`
	Notify    NotifyConfig      `mapstructure:"notify"`
	Trigger   TriggerConfig     `mapstructure:"trigger"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Signers   map[string]string `mapstructure:"signers"` // chain id → signing address
}

// AppConfig names the running environment.
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// PairConfig names the swap pair and wallet account.
type PairConfig struct {
	SourceAsset string `mapstructure:"source_asset"`
	SourceChain string `mapstructure:"source_chain"`
	DestAsset   string `mapstructure:"dest_asset"`
	DestChain   string `mapstructure:"dest_chain"`
	AccountRef  string `mapstructure:"account_ref"`
}

// PolicyConfig holds trade-size and protection limits.
type PolicyConfig struct {
	MinUSD           float64       `mapstructure:"min_usd"`
	MaxUSD           float64       `mapstructure:"max_usd"`
	SwapPercentage   float64       `mapstructure:"swap_percentage"`
	KeepReserve      float64       `mapstructure:"keep_reserve"`
	MaxSlippageBps   int           `mapstructure:"max_slippage_bps"`
	MinEffectiveRate float64       `mapstructure:"min_effective_rate"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
}

// TradePolicy converts the config into the domain policy.
func (c PolicyConfig) TradePolicy() domain.TradePolicy {
	return domain.TradePolicy{
		MinUSD:           c.MinUSD,
		MaxUSD:           c.MaxUSD,
		SwapPercentage:   c.SwapPercentage,
		KeepReserve:      c.KeepReserve,
		MaxSlippageBps:   c.MaxSlippageBps,
		MinEffectiveRate: c.MinEffectiveRate,
		ExecutionTimeout: c.ExecutionTimeout,
	}
}

// OracleConfig configures the price oracle.
type OracleConfig struct {
	PrimaryName   string             `mapstructure:"primary_name"`
	PrimaryURL    string             `mapstructure:"primary_url"`
	FallbackName  string             `mapstructure:"fallback_name"`
	FallbackURL   string             `mapstructure:"fallback_url"`
	CacheTTL      time.Duration      `mapstructure:"cache_ttl"`
	Pegs          map[string]float64 `mapstructure:"pegs"`           // fixed-price symbols
	ClickhouseDSN string             `mapstructure:"clickhouse_dsn"` // optional observation sink
}

// WalletConfig points at the wallet service.
type WalletConfig struct {
	RPCURL string `mapstructure:"rpc_url"`
}

// RoutingConfig points at the routing backend.
type RoutingConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// ExecutionConfig selects and configures the execution driver.
type ExecutionConfig struct {
	Simulation bool          `mapstructure:"simulation"`
	WSURL      string        `mapstructure:"ws_url"`
	SimChain   string        `mapstructure:"sim_chain"`
	SimDelay   time.Duration `mapstructure:"sim_delay"`
}

// LedgerConfig selects the ledger backend.
type LedgerConfig struct {
	Backend     string `mapstructure:"backend"` // "postgres" or "memory"
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// NotifyConfig configures the webhook notifier.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// TriggerConfig configures the periodic trigger loop.
type TriggerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Pair.SourceAsset == "" || c.Pair.DestAsset == "" {
		return fmt.Errorf("pair.source_asset and pair.dest_asset are required")
	}
	if c.Pair.AccountRef == "" {
		return fmt.Errorf("pair.account_ref is required")
	}
	if err := c.Policy.TradePolicy().Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if c.Oracle.PrimaryURL == "" {
		return fmt.Errorf("oracle.primary_url is required")
	}
	if c.Wallet.RPCURL == "" {
		return fmt.Errorf("wallet.rpc_url is required")
	}
	if c.Routing.BaseURL == "" {
		return fmt.Errorf("routing.base_url is required")
	}
	if !c.Execution.Simulation && c.Execution.WSURL == "" {
		return fmt.Errorf("execution.ws_url is required unless execution.simulation is set")
	}
	switch c.Ledger.Backend {
	case "memory":
	case "postgres":
		if c.Ledger.PostgresDSN == "" {
			return fmt.Errorf("ledger.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Trigger.Interval <= 0 {
		return fmt.Errorf("trigger.interval must be positive, got %v", c.Trigger.Interval)
	}
	return nil
}
