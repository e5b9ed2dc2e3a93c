package config

// PlannerServerConfig is the runtime configuration of the planner HTTP service
type PlannerServerConfig struct {
	// http server configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`

	// Socket aggregator, an empty key disables external quotes
	SocketAPIKey string   `toml:"socket_api_key" mapstructure:"socket_api_key"`
	SocketURLs   []string `toml:"socket_urls" mapstructure:"socket_urls"`

	// Cache configs, backend is "memory" or "redis"
	CacheBackend    string `toml:"cache_backend" mapstructure:"cache_backend"`
	RedisURL        string `toml:"redis_url" mapstructure:"redis_url"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
	CacheMaxEntries int    `toml:"cache_max_entries" mapstructure:"cache_max_entries"`

	// Allocation configs
	Strategy                string `toml:"strategy" mapstructure:"strategy"`
	ExhaustiveMaxCandidates int    `toml:"exhaustive_max_candidates" mapstructure:"exhaustive_max_candidates"`
	DustThreshold           string `toml:"dust_threshold" mapstructure:"dust_threshold"`

	// Balance query configs
	BalanceAttempts       int  `toml:"balance_attempts" mapstructure:"balance_attempts"`
	BalanceTimeoutSeconds int  `toml:"balance_timeout_seconds" mapstructure:"balance_timeout_seconds"`
	GasPriceAware         bool `toml:"gas_price_aware" mapstructure:"gas_price_aware"`

	// Generated chain config produced by config_manager
	ChainConfigPath string `toml:"chain_config_path" mapstructure:"chain_config_path"`

	// Fixed balances per chain key, replaces on-chain queries when set
	StaticBalances map[string]string `toml:"static_balances" mapstructure:"static_balances"`
}
