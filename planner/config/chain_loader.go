package config

import (
	"fmt"

	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/output"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/fees"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

const defaultTokenDecimals int32 = 6

// ChainConfigLoader loads the generated planner config and converts it to the
// chain and fee types used by the planner.
type ChainConfigLoader struct{}

// NewChainConfigLoader creates a new chain config loader.
func NewChainConfigLoader() *ChainConfigLoader {
	return &ChainConfigLoader{}
}

// LoadFromFile loads a planner config from a TOML or JSON file.
func (l *ChainConfigLoader) LoadFromFile(filePath string) ([]models.Chain, fees.Schedule, error) {
	plannerConfig, err := output.LoadPlannerConfig(filePath)
	if err != nil {
		return nil, fees.Schedule{}, err
	}
	return l.Convert(plannerConfig)
}

// Convert turns a PlannerConfig into planner chains and the fallback fee schedule.
// Empty fee fields keep the built-in defaults.
func (l *ChainConfigLoader) Convert(config *output.PlannerConfig) ([]models.Chain, fees.Schedule, error) {
	if config == nil || len(config.Chains) == 0 {
		return nil, fees.Schedule{}, fmt.Errorf("no chains in config")
	}

	schedule, err := convertSchedule(config.Fees)
	if err != nil {
		return nil, fees.Schedule{}, err
	}

	chains := make([]models.Chain, len(config.Chains))
	seen := make(map[string]struct{}, len(config.Chains))

	for i, plannerChain := range config.Chains {
		if plannerChain.Key == "" {
			return nil, fees.Schedule{}, fmt.Errorf("chain %d has no key", i)
		}
		if _, dup := seen[plannerChain.Key]; dup {
			return nil, fees.Schedule{}, fmt.Errorf("duplicate chain key %s", plannerChain.Key)
		}
		seen[plannerChain.Key] = struct{}{}

		multiplier := decimal.NewFromInt(1)
		if plannerChain.GasMultiplier != "" {
			multiplier, err = decimal.NewFromString(plannerChain.GasMultiplier)
			if err != nil {
				return nil, fees.Schedule{}, fmt.Errorf("chain %s: invalid gas_multiplier: %w", plannerChain.Key, err)
			}
		}

		var nativeUSD decimal.Decimal
		if plannerChain.NativeTokenUSD != "" {
			nativeUSD, err = decimal.NewFromString(plannerChain.NativeTokenUSD)
			if err != nil {
				return nil, fees.Schedule{}, fmt.Errorf("chain %s: invalid native_token_usd: %w", plannerChain.Key, err)
			}
		}

		tokenDecimals := plannerChain.TokenDecimals
		if tokenDecimals == 0 {
			tokenDecimals = defaultTokenDecimals
		}

		chains[i] = models.Chain{
			Key:                 plannerChain.Key,
			Name:                plannerChain.Name,
			ChainID:             plannerChain.ChainID,
			NativeToken:         plannerChain.NativeToken,
			TokenAddress:        plannerChain.TokenAddress,
			TokenDecimals:       tokenDecimals,
			RPCURLs:             append([]string(nil), plannerChain.RPCURLs...),
			GasMultiplier:       multiplier,
			NativeTokenUSD:      nativeUSD,
			ZeroOnCallException: plannerChain.ZeroOnCallException,
		}

		for target, pct := range plannerChain.FeePercentages {
			value, err := decimal.NewFromString(pct)
			if err != nil {
				return nil, fees.Schedule{}, fmt.Errorf("chain %s: invalid fee percentage to %s: %w", plannerChain.Key, target, err)
			}
			if schedule.Percentages[plannerChain.Key] == nil {
				schedule.Percentages[plannerChain.Key] = make(map[string]decimal.Decimal)
			}
			schedule.Percentages[plannerChain.Key][target] = value
		}
	}

	return chains, schedule, nil
}

func convertSchedule(in output.PlannerFees) (fees.Schedule, error) {
	schedule := fees.DefaultSchedule()
	schedule.Percentages = make(map[string]map[string]decimal.Decimal)

	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"base_gas_fee", in.BaseGasFee, &schedule.BaseGasFee},
		{"default_fee_percentage", in.DefaultFeePercentage, &schedule.DefaultFeePercentage},
		{"min_fee", in.MinFee, &schedule.MinFee},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		parsed, err := decimal.NewFromString(f.value)
		if err != nil {
			return fees.Schedule{}, fmt.Errorf("invalid fees.%s: %w", f.name, err)
		}
		*f.dst = parsed
	}
	if in.AvgGasUnits > 0 {
		schedule.AvgGasUnits = in.AvgGasUnits
	}
	return schedule, nil
}
