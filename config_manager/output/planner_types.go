// Package output defines the generated configuration consumed by the planner
// service and the converter that produces it from the human-readable inputs.
package output

// PlannerConfig contains all chain and fee configuration needed by the planner.
// This is the top-level config that gets loaded at startup.
type PlannerConfig struct {
	// Version of the config format
	Version string `json:"version" toml:"version"`

	// When this config was generated
	GeneratedAt string `json:"generated_at" toml:"generated_at"`

	// Fallback fee settings
	Fees PlannerFees `json:"fees" toml:"fees"`

	// All chains the planner can draw from or bridge to
	Chains []PlannerChain `json:"chains" toml:"chains"`
}

// PlannerFees are the global fallback fee settings.
// Amounts are decimal strings to keep them exact.
type PlannerFees struct {
	BaseGasFee           string `json:"base_gas_fee" toml:"base_gas_fee"`
	DefaultFeePercentage string `json:"default_fee_percentage" toml:"default_fee_percentage"`
	MinFee               string `json:"min_fee" toml:"min_fee"`
	AvgGasUnits          uint64 `json:"avg_gas_units" toml:"avg_gas_units"`
}

// PlannerChain maps directly to models.Chain plus the chain's outgoing lane fees.
type PlannerChain struct {
	// Key used in requests (e.g. "polygon")
	Key string `json:"key" toml:"key"`

	// Human-readable chain name
	Name string `json:"name" toml:"name"`

	// EVM chain id
	ChainID int64 `json:"chain_id" toml:"chain_id"`

	// Gas token symbol
	NativeToken string `json:"native_token" toml:"native_token"`

	// Gas token price in USD, empty when unknown
	NativeTokenUSD string `json:"native_token_usd,omitempty" toml:"native_token_usd,omitempty"`

	// Fallback gas fee multiplier
	GasMultiplier string `json:"gas_multiplier" toml:"gas_multiplier"`

	ZeroOnCallException bool `json:"zero_on_call_exception" toml:"zero_on_call_exception"`

	// The planned token on this chain
	TokenSymbol   string `json:"token_symbol" toml:"token_symbol"`
	TokenAddress  string `json:"token_address" toml:"token_address"`
	TokenDecimals int32  `json:"token_decimals" toml:"token_decimals"`

	// Healthy JSON-RPC endpoints, preferred first
	RPCURLs []string `json:"rpc_urls" toml:"rpc_urls"`

	// Bridge fee percentage keyed by target chain key
	FeePercentages map[string]string `json:"fee_percentages,omitempty" toml:"fee_percentages,omitempty"`
}
