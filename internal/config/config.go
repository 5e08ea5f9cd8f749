// Package config loads swapper configuration from a YAML file layered with
// environment variables (SWAPPER_ prefix) and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/swapper.yaml"
	envPrefix         = "swapper"
)

// Load reads the configuration file and environment and returns a validated Config.
func Load(path string) (*Config, error) {
	// A .env file is a convenience for local runs; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file %q not found: %w", path, err)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("policy.min_usd", 10.0)
	v.SetDefault("policy.max_usd", 1000.0)
	v.SetDefault("policy.swap_percentage", 100.0)
	v.SetDefault("policy.keep_reserve", 0.0)
	v.SetDefault("policy.max_slippage_bps", 100)
	v.SetDefault("policy.min_effective_rate", 0.0001)
	v.SetDefault("policy.execution_timeout", "5m")

	v.SetDefault("oracle.primary_name", "primary")
	v.SetDefault("oracle.fallback_name", "fallback")
	v.SetDefault("oracle.cache_ttl", "30s")

	v.SetDefault("execution.simulation", false)
	v.SetDefault("execution.sim_chain", "simnet")
	v.SetDefault("execution.sim_delay", "0s")

	v.SetDefault("ledger.backend", "postgres")

	v.SetDefault("trigger.interval", "1h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
}
