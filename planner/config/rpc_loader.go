package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/router"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const defaultSocketURL = "https://api.socket.tech/v2"

// LoadPlannerServerConfig loads the planner server config from the given path
func LoadPlannerServerConfig(configPath *string) (*PlannerServerConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		// if no file expect envs
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	} else {
		config, err := loadFile(v, *configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load file config: %w", err)
		}
		return config, nil
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("max_concurrent_requests", 200)
	v.SetDefault("service_name", "spectra-bridge-planner")
	v.SetDefault("service_version", "1.0.0")
	v.SetDefault("socket_urls", []string{defaultSocketURL})
	v.SetDefault("cache_backend", "memory")
	v.SetDefault("cache_ttl_seconds", 300)
	v.SetDefault("cache_max_entries", 10_000)
	v.SetDefault("strategy", router.StrategyGreedyByBalance)
	v.SetDefault("exhaustive_max_candidates", router.DefaultExhaustiveCandidates)
	v.SetDefault("dust_threshold", "0.1")
	v.SetDefault("balance_attempts", 3)
	v.SetDefault("balance_timeout_seconds", 15)
	v.SetDefault("chain_config_path", "generated_configs/planner_config.toml")
}

func loadEnv(v *viper.Viper) (*PlannerServerConfig, error) {
	// godot might fail if .env file is missing but
	// env can be applied through docker, systmed or other means, so skip error
	_ = godotenv.Load()
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config PlannerServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded (env-only mode).
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode",
		"socket_api_key", "socket_urls",
		"cache_backend", "redis_url", "cache_ttl_seconds", "cache_max_entries",
		"strategy", "exhaustive_max_candidates", "dust_threshold",
		"balance_attempts", "balance_timeout_seconds", "gas_price_aware",
		"chain_config_path",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*PlannerServerConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config PlannerServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}

	return &config, nil
}

func verifyConfig(config *PlannerServerConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}

	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}

	for _, url := range config.SocketURLs {
		if url == "" {
			return fmt.Errorf("socket_urls must not be empty")
		}
	}

	switch config.CacheBackend {
	case "memory":
	case "redis":
		if config.RedisURL == "" {
			return fmt.Errorf("redis_url is required with the redis cache backend")
		}
	default:
		return fmt.Errorf("cache_backend must be memory or redis, got %q", config.CacheBackend)
	}

	if config.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache_ttl_seconds must be positive")
	}

	switch config.Strategy {
	case router.StrategyGreedyByBalance, router.StrategyGreedyByFee,
		router.StrategyProportionalSplit, router.StrategyExhaustiveSubset:
	default:
		return fmt.Errorf("unknown strategy %q", config.Strategy)
	}

	if config.ExhaustiveMaxCandidates < 0 || config.ExhaustiveMaxCandidates > router.MaxExhaustiveCandidates {
		return fmt.Errorf("exhaustive_max_candidates must be between 0 and %d", router.MaxExhaustiveCandidates)
	}

	if dust, err := decimal.NewFromString(config.DustThreshold); err != nil || dust.IsNegative() {
		return fmt.Errorf("dust_threshold must be a non-negative decimal")
	}

	if config.BalanceAttempts < 1 {
		return fmt.Errorf("balance_attempts must be at least 1")
	}
	if config.BalanceTimeoutSeconds <= 0 {
		return fmt.Errorf("balance_timeout_seconds must be positive")
	}

	if config.ChainConfigPath == "" {
		return fmt.Errorf("chain_config_path is required")
	}

	for chain, amount := range config.StaticBalances {
		if b, err := decimal.NewFromString(amount); err != nil || b.IsNegative() {
			return fmt.Errorf("static_balances.%s must be a non-negative decimal", chain)
		}
	}

	return nil
}

// CacheTTL returns the route and quote cache expiry
func (c *PlannerServerConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// BalanceTimeout returns the per-attempt balance query timeout
func (c *PlannerServerConfig) BalanceTimeout() time.Duration {
	return time.Duration(c.BalanceTimeoutSeconds) * time.Second
}

// Dust returns the parsed dust threshold, verifyConfig guarantees it parses
func (c *PlannerServerConfig) Dust() decimal.Decimal {
	return decimal.RequireFromString(c.DustThreshold)
}

// StaticBalanceMap returns the parsed static balances, nil when none are configured
func (c *PlannerServerConfig) StaticBalanceMap() map[string]decimal.Decimal {
	if len(c.StaticBalances) == 0 {
		return nil
	}
	balances := make(map[string]decimal.Decimal, len(c.StaticBalances))
	for chain, amount := range c.StaticBalances {
		balances[chain] = decimal.RequireFromString(amount)
	}
	return balances
}
