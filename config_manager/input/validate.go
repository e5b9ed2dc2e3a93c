package input

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ValidationError contains details about a validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains the results of validating a chain configuration.
type ValidationResult struct {
	ChainKey string
	IsValid  bool
	Errors   []error
	Warnings []string
}

// Validator validates human-readable chain configurations.
// Endpoint health is not checked here, the validator package probes the RPCs.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// SupportedChainTypes lists the chain types we currently support.
var SupportedChainTypes = []string{"evm"}

// Validate validates a single chain configuration.
func (v *Validator) Validate(config *ChainInput) *ValidationResult {
	result := &ValidationResult{
		ChainKey: config.Chain.Key,
		IsValid:  true,
	}

	v.validateRequired(config, result)
	v.validateTypes(config, result)
	v.validateLogic(config, result)

	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidateAll validates every configuration and the lanes between them.
func (v *Validator) ValidateAll(configs map[string]*ChainInput) (map[string]*ValidationResult, error) {
	results := make(map[string]*ValidationResult)
	var hasErrors bool

	chainIDs := make(map[int64]string, len(configs))
	for key, config := range configs {
		result := v.Validate(config)

		if other, ok := chainIDs[config.Chain.ChainID]; ok && config.Chain.ChainID != 0 {
			result.Errors = append(result.Errors, &ValidationError{
				"chain.chain_id",
				fmt.Sprintf("chain id %d is also used by %s", config.Chain.ChainID, other),
			})
		}
		chainIDs[config.Chain.ChainID] = key

		for i, lane := range config.Lanes {
			if _, ok := configs[lane.ToChain]; !ok && lane.ToChain != "" {
				result.Errors = append(result.Errors, &ValidationError{
					fmt.Sprintf("lane[%d].to_chain", i),
					fmt.Sprintf("unknown chain '%s'", lane.ToChain),
				})
			}
		}

		result.IsValid = len(result.Errors) == 0
		results[key] = result
		if !result.IsValid {
			hasErrors = true
		}
	}

	if hasErrors {
		return results, errors.New("one or more configurations failed validation")
	}
	return results, nil
}

func (v *Validator) validateRequired(config *ChainInput, result *ValidationResult) {
	chain := config.Chain

	if chain.Key == "" {
		result.Errors = append(result.Errors, &ValidationError{"chain.key", "is required"})
	}
	if chain.Name == "" {
		result.Errors = append(result.Errors, &ValidationError{"chain.name", "is required"})
	}
	if chain.ChainID <= 0 {
		result.Errors = append(result.Errors, &ValidationError{"chain.chain_id", "is required and must be positive"})
	}
	if chain.Type == "" {
		result.Errors = append(result.Errors, &ValidationError{"chain.type", "is required"})
	}
	if chain.NativeToken == "" {
		result.Errors = append(result.Errors, &ValidationError{"chain.native_token", "is required"})
	}
	if len(chain.RPCs) == 0 {
		result.Errors = append(result.Errors, &ValidationError{"chain.rpcs", "at least one RPC endpoint is required"})
	}

	if config.Token.Symbol == "" {
		result.Errors = append(result.Errors, &ValidationError{"token.symbol", "is required"})
	}
	if config.Token.Address == "" {
		result.Errors = append(result.Errors, &ValidationError{"token.address", "is required"})
	}
}

func (v *Validator) validateTypes(config *ChainInput, result *ValidationResult) {
	chain := config.Chain

	if chain.Type != "" && !slices.Contains(SupportedChainTypes, chain.Type) {
		result.Errors = append(result.Errors, &ValidationError{
			"chain.type",
			fmt.Sprintf("unsupported type '%s', must be one of: %v", chain.Type, SupportedChainTypes),
		})
	}

	if config.Token.Address != "" && !common.IsHexAddress(config.Token.Address) {
		result.Errors = append(result.Errors, &ValidationError{"token.address", "must be a 20 byte hex address"})
	}

	if config.Token.Decimals < 0 || config.Token.Decimals > 36 {
		result.Errors = append(result.Errors, &ValidationError{"token.decimals", "must be between 0 and 36"})
	}

	checkPositiveDecimal(chain.GasMultiplier, "chain.gas_multiplier", result)
	checkPositiveDecimal(chain.NativeTokenUSD, "chain.native_token_usd", result)

	for i, rpc := range chain.RPCs {
		field := fmt.Sprintf("chain.rpcs[%d].url", i)
		if rpc.URL == "" {
			result.Errors = append(result.Errors, &ValidationError{field, "is required"})
			continue
		}
		u, err := url.Parse(rpc.URL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http" && u.Scheme != "wss" && u.Scheme != "ws") {
			result.Errors = append(result.Errors, &ValidationError{field, "must be an http(s) or ws(s) URL"})
		}
	}
}

func (v *Validator) validateLogic(config *ChainInput, result *ValidationResult) {
	seenLanes := make(map[string]bool)
	for i, lane := range config.Lanes {
		prefix := fmt.Sprintf("lane[%d]", i)
		if lane.ToChain == "" {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".to_chain", "is required"})
			continue
		}
		if lane.ToChain == config.Chain.Key {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".to_chain", "cannot point to the chain itself"})
		}
		if seenLanes[lane.ToChain] {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".to_chain",
				fmt.Sprintf("duplicate lane to '%s'", lane.ToChain),
			})
		}
		seenLanes[lane.ToChain] = true

		pct, err := decimal.NewFromString(lane.FeePercentage)
		if err != nil || pct.IsNegative() || pct.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".fee_percentage",
				"must be a number in [0, 100)",
			})
		}
	}

	if len(config.Lanes) == 0 {
		result.Warnings = append(result.Warnings, "no lanes defined - the default fee percentage applies to every target")
	}

	if len(config.Chain.RPCs) == 1 {
		result.Warnings = append(result.Warnings, "only one RPC endpoint - no failover and no consensus check")
	}

	if config.Chain.NativeTokenUSD == "" {
		result.Warnings = append(result.Warnings, "native_token_usd not set - gas price based fees disabled for this chain")
	}
}

// checkPositiveDecimal validates an optional decimal string field
func checkPositiveDecimal(value, field string, result *ValidationResult) {
	if value == "" {
		return
	}
	d, err := decimal.NewFromString(value)
	if err != nil || !d.IsPositive() {
		result.Errors = append(result.Errors, &ValidationError{field, "must be a positive number"})
	}
}

// ValidateFeeDefaults checks the global fee settings
func ValidateFeeDefaults(fees FeeDefaults) error {
	var errs []error
	for field, value := range map[string]string{
		"base_gas_fee":           fees.BaseGasFee,
		"default_fee_percentage": fees.DefaultFeePercentage,
		"min_fee":                fees.MinFee,
	} {
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() {
			errs = append(errs, &ValidationError{field, "must be a non-negative number"})
		}
	}
	if fees.AvgGasUnits == 0 {
		errs = append(errs, &ValidationError{"avg_gas_units", "must be positive"})
	}
	return errors.Join(errs...)
}
