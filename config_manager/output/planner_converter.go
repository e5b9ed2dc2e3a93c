package output

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/input"
)

// ConfigVersion is written into every generated config
const ConfigVersion = "1.0"

// PlannerConverter converts validated chain inputs to the planner config format.
type PlannerConverter struct{}

// NewPlannerConverter creates a new planner converter.
func NewPlannerConverter() *PlannerConverter {
	return &PlannerConverter{}
}

// Convert transforms the chain inputs into a planner config. Chains are ordered
// by chain id. healthyRPCs replaces a chain's endpoints when it has an entry
// for that chain key, a chain left without endpoints is an error.
func (c *PlannerConverter) Convert(
	inputs map[string]*input.ChainInput,
	fees input.FeeDefaults,
	healthyRPCs map[string][]input.APIEndpoint,
) (*PlannerConfig, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no chains to convert")
	}

	config := &PlannerConfig{
		Version:     ConfigVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Fees: PlannerFees{
			BaseGasFee:           fees.BaseGasFee,
			DefaultFeePercentage: fees.DefaultFeePercentage,
			MinFee:               fees.MinFee,
			AvgGasUnits:          fees.AvgGasUnits,
		},
		Chains: make([]PlannerChain, 0, len(inputs)),
	}

	for key, chainInput := range inputs {
		endpoints := chainInput.Chain.RPCs
		if healthy, ok := healthyRPCs[key]; ok {
			endpoints = healthy
		}
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("chain %s has no usable RPC endpoints", key)
		}
		config.Chains = append(config.Chains, c.convertChain(chainInput, endpoints))
	}

	slices.SortFunc(config.Chains, func(a, b PlannerChain) int {
		if a.ChainID != b.ChainID {
			if a.ChainID < b.ChainID {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Key, b.Key)
	})

	return config, nil
}

func (c *PlannerConverter) convertChain(chainInput *input.ChainInput, endpoints []input.APIEndpoint) PlannerChain {
	chain := chainInput.Chain

	gasMultiplier := chain.GasMultiplier
	if gasMultiplier == "" {
		gasMultiplier = "1"
	}

	plannerChain := PlannerChain{
		Key:                 chain.Key,
		Name:                chain.Name,
		ChainID:             chain.ChainID,
		NativeToken:         chain.NativeToken,
		NativeTokenUSD:      chain.NativeTokenUSD,
		GasMultiplier:       gasMultiplier,
		ZeroOnCallException: chain.ZeroOnCallException,
		TokenSymbol:         chainInput.Token.Symbol,
		TokenAddress:        chainInput.Token.Address,
		TokenDecimals:       chainInput.Token.Decimals,
		RPCURLs:             make([]string, 0, len(endpoints)),
	}

	for _, endpoint := range endpoints {
		plannerChain.RPCURLs = append(plannerChain.RPCURLs, endpoint.URL)
	}

	if len(chainInput.Lanes) > 0 {
		plannerChain.FeePercentages = make(map[string]string, len(chainInput.Lanes))
		for _, lane := range chainInput.Lanes {
			plannerChain.FeePercentages[lane.ToChain] = lane.FeePercentage
		}
	}

	return plannerChain
}
