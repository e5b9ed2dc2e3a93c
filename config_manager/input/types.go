// Package input defines the human-readable chain configuration that operators
// write, one TOML file per EVM chain. The config_manager validates these files,
// probes their RPC endpoints and turns them into the generated planner config.
package input

// ChainInput is the human-readable chain configuration.
// This is parsed from TOML files in the chain configs directory.
type ChainInput struct {
	Chain ChainMeta `toml:"chain"`
	Token TokenMeta `toml:"token"`
	// Outgoing bridge lanes with a known fee percentage
	Lanes []LaneMeta `toml:"lane"`
}

// ChainMeta contains the chain identification and gas settings.
type ChainMeta struct {
	// Required: key used in requests and fee tables (e.g. "polygon")
	Key string `toml:"key"`

	// Required: human-readable name (e.g. "Polygon")
	Name string `toml:"name"`

	// Required: EVM chain id (e.g. 137)
	ChainID int64 `toml:"chain_id"`

	// Required: chain type - currently only "evm" is supported
	Type string `toml:"type"`

	// Required: symbol of the gas token (e.g. "MATIC", "ETH")
	NativeToken string `toml:"native_token"`

	// Optional: USD price of the gas token, enables the gas price based fee estimate
	NativeTokenUSD string `toml:"native_token_usd,omitempty"`

	// Optional: scales the fallback gas fee, defaults to 1
	GasMultiplier string `toml:"gas_multiplier,omitempty"`

	// Optional: treat a failed balance call as a zero balance instead of retrying.
	// Gnosis answers CALL_EXCEPTION for accounts that never held the token.
	ZeroOnCallException bool `toml:"zero_on_call_exception,omitempty"`

	// Optional: block explorer URL
	ExplorerURL string `toml:"explorer_url,omitempty"`

	// Required: JSON-RPC endpoints
	RPCs []APIEndpoint `toml:"rpcs"`
}

// APIEndpoint represents a JSON-RPC endpoint.
type APIEndpoint struct {
	// Required: Full URL of the endpoint
	URL string `toml:"url"`

	// Optional: Provider name (e.g., "LlamaNodes", "dRPC")
	Provider string `toml:"provider,omitempty"`
}

// TokenMeta describes the token planned over on this chain (USDC in the default set).
type TokenMeta struct {
	// Required: symbol (e.g. "USDC")
	Symbol string `toml:"symbol"`

	// Required: ERC20 contract address
	Address string `toml:"address"`

	// Required: decimal places, 6 for USDC
	Decimals int32 `toml:"decimals"`
}

// LaneMeta is the bridge fee percentage from this chain to another one.
//
//	[[lane]]
//	to_chain = "polygon"
//	fee_percentage = "0.5"
type LaneMeta struct {
	ToChain       string `toml:"to_chain"`
	FeePercentage string `toml:"fee_percentage"`
}

// FeeDefaults holds the global fallback fee settings, read from fees.toml.
type FeeDefaults struct {
	BaseGasFee           string `toml:"base_gas_fee"`
	DefaultFeePercentage string `toml:"default_fee_percentage"`
	MinFee               string `toml:"min_fee"`
	AvgGasUnits          uint64 `toml:"avg_gas_units"`
}

// DefaultFeeDefaults are used when no fees.toml is given
func DefaultFeeDefaults() FeeDefaults {
	return FeeDefaults{
		BaseGasFee:           "0.001",
		DefaultFeePercentage: "1.5",
		MinFee:               "0.5",
		AvgGasUnits:          250000,
	}
}
