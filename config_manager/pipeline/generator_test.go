package pipeline_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/output"
	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/pipeline"
	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const polygonTOML = `
[chain]
key = "polygon"
name = "Polygon"
chain_id = 137
type = "evm"
native_token = "MATIC"
native_token_usd = "0.7"

[[chain.rpcs]]
url = "https://polygon.llamarpc.com"

[[chain.rpcs]]
url = "https://polygon-rpc.com"

[token]
symbol = "USDC"
address = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
decimals = 6

[[lane]]
to_chain = "arbitrum"
fee_percentage = "0.5"
`

const arbitrumTOML = `
[chain]
key = "arbitrum"
name = "Arbitrum One"
chain_id = 42161
type = "evm"
native_token = "ETH"
gas_multiplier = "0.1"

[[chain.rpcs]]
url = "https://arbitrum.llamarpc.com"

[token]
symbol = "USDC"
address = "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8"
decimals = 6
`

const feesTOML = `
min_fee = "0.25"
`

func writeInputs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed writing %s: %v", name, err)
		}
	}
	return dir
}

func TestGenerate_SkipNetwork(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"polygon.toml":  polygonTOML,
		"arbitrum.toml": arbitrumTOML,
		"fees.toml":     feesTOML,
	})
	outPath := filepath.Join(t.TempDir(), "generated", "planner_config.toml")

	result, err := pipeline.NewGenerator(pipeline.GeneratorConfig{
		InputDir:              dir,
		OutputPath:            outPath,
		SkipNetworkValidation: true,
	}).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.ChainsProcessed != 2 {
		t.Fatalf("expected 2 chains, got %d", result.ChainsProcessed)
	}
	if result.OutputPath != outPath {
		t.Errorf("unexpected output path %q", result.OutputPath)
	}

	config, err := output.LoadPlannerConfig(outPath)
	if err != nil {
		t.Fatalf("failed to load generated config: %v", err)
	}
	if config.Version != output.ConfigVersion {
		t.Errorf("unexpected version %q", config.Version)
	}
	if config.Fees.MinFee != "0.25" || config.Fees.DefaultFeePercentage != "1.5" {
		t.Errorf("fee defaults not merged: %+v", config.Fees)
	}
	// ordered by chain id
	if config.Chains[0].Key != "polygon" || config.Chains[1].Key != "arbitrum" {
		t.Fatalf("unexpected chain order: %s, %s", config.Chains[0].Key, config.Chains[1].Key)
	}
	polygon := config.Chains[0]
	if len(polygon.RPCURLs) != 2 {
		t.Errorf("expected both polygon endpoints, got %v", polygon.RPCURLs)
	}
	if polygon.GasMultiplier != "1" {
		t.Errorf("missing gas multiplier should default to 1, got %q", polygon.GasMultiplier)
	}
	if polygon.FeePercentages["arbitrum"] != "0.5" {
		t.Errorf("lane fee missing: %v", polygon.FeePercentages)
	}
	if config.Chains[1].TokenAddress != "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8" {
		t.Errorf("unexpected token address %q", config.Chains[1].TokenAddress)
	}
}

func TestGenerate_JSONOutput(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"polygon.toml":  polygonTOML,
		"arbitrum.toml": arbitrumTOML,
	})
	outPath := filepath.Join(t.TempDir(), "planner_config.json")

	_, err := pipeline.NewGenerator(pipeline.GeneratorConfig{
		InputDir:              dir,
		OutputPath:            outPath,
		SkipNetworkValidation: true,
	}).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	config, err := output.LoadPlannerConfig(outPath)
	if err != nil {
		t.Fatalf("failed to load generated JSON config: %v", err)
	}
	if len(config.Chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(config.Chains))
	}
}

func TestGenerate_ValidationFailure(t *testing.T) {
	broken := `
[chain]
key = "broken"
chain_id = 10
type = "evm"

[token]
address = "not-an-address"
`
	dir := writeInputs(t, map[string]string{
		"polygon.toml": polygonTOML,
		"broken.toml":  broken,
	})

	result, err := pipeline.NewGenerator(pipeline.GeneratorConfig{
		InputDir:              dir,
		SkipNetworkValidation: true,
	}).Generate(context.Background())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if result == nil || result.ValidationResults["broken"].IsValid {
		t.Fatal("broken chain should be reported invalid")
	}
}

type stubEndpoint struct {
	chainID int64
}

func (s stubEndpoint) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(s.chainID), nil
}

func (s stubEndpoint) BlockNumber(context.Context) (uint64, error) {
	return 10_000, nil
}

func (s stubEndpoint) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{
		Number:     new(big.Int).Set(number),
		Difficulty: big.NewInt(0),
		ParentHash: common.BigToHash(new(big.Int).Sub(number, big.NewInt(1))),
		Time:       1_700_000_000 + number.Uint64(),
	}, nil
}

func (s stubEndpoint) Close() {}

func TestGenerate_ProbeDropsDeadEndpoints(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"polygon.toml":  polygonTOML,
		"arbitrum.toml": arbitrumTOML,
	})
	live := map[string]int64{
		"https://polygon.llamarpc.com":  137,
		"https://arbitrum.llamarpc.com": 42161,
	}
	dial := func(_ context.Context, url string) (validator.EndpointClient, error) {
		if id, ok := live[url]; ok {
			return stubEndpoint{chainID: id}, nil
		}
		return nil, errors.New("connection refused")
	}
	probe := validator.DefaultProbeConfig()
	probe.RetryAttempts = 1
	probe.RetryDelay = 0

	outPath := filepath.Join(t.TempDir(), "planner_config.toml")
	result, err := pipeline.NewGenerator(pipeline.GeneratorConfig{
		InputDir:   dir,
		OutputPath: outPath,
		Probe:      probe,
		Dial:       dial,
	}).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	dropped := result.DroppedEndpoints["polygon"]
	if len(dropped) != 1 || dropped[0] != "https://polygon-rpc.com" {
		t.Fatalf("expected polygon-rpc.com to be dropped, got %v", dropped)
	}

	config, err := output.LoadPlannerConfig(outPath)
	if err != nil {
		t.Fatalf("failed to load generated config: %v", err)
	}
	if len(config.Chains[0].RPCURLs) != 1 || config.Chains[0].RPCURLs[0] != "https://polygon.llamarpc.com" {
		t.Errorf("unexpected polygon endpoints %v", config.Chains[0].RPCURLs)
	}
}

func TestGenerate_NoHealthyEndpoint(t *testing.T) {
	dir := writeInputs(t, map[string]string{
		"polygon.toml":  polygonTOML,
		"arbitrum.toml": arbitrumTOML,
	})
	dial := func(context.Context, string) (validator.EndpointClient, error) {
		return nil, errors.New("connection refused")
	}
	probe := validator.DefaultProbeConfig()
	probe.RetryAttempts = 1
	probe.RetryDelay = 0

	_, err := pipeline.NewGenerator(pipeline.GeneratorConfig{
		InputDir: dir,
		Probe:    probe,
		Dial:     dial,
	}).Generate(context.Background())
	if err == nil {
		t.Fatal("expected error when a chain has no healthy endpoint")
	}
}
