// Package pipeline provides the main configuration generation pipeline that
// transforms human-readable chain configs into the generated planner config.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/input"
	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/output"
	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/registry"
	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/validator"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "pipeline").Logger()
}

// OutputFormat specifies the output format for generated configs.
type OutputFormat string

const (
	FormatTOML OutputFormat = "toml"
	FormatJSON OutputFormat = "json"
	FormatAuto OutputFormat = "auto" // Determine from file extension
)

// maxConcurrentProbes limits how many chains are probed at once
const maxConcurrentProbes = 4

// GeneratorConfig configures the pipeline generator.
type GeneratorConfig struct {
	// Path to the directory containing human-readable chain configs
	InputDir string

	// Optional go-getter source downloaded into InputDir before loading
	RemoteSource string

	// Path to output the generated planner config, empty means validate only
	OutputPath string

	// Output format for planner config (default: auto from extension)
	OutputFormat OutputFormat

	// Path to the fee defaults file, defaults to InputDir/fees.toml
	FeesPath string

	// Skip network validation of endpoints
	SkipNetworkValidation bool

	// RPC probe settings
	Probe validator.ProbeConfig

	// Dial opens RPC clients for probing, defaults to validator.EthDial
	Dial validator.DialFunc
}

// Generator is the main config generation pipeline.
type Generator struct {
	config         GeneratorConfig
	inputLoader    *input.Loader
	inputValidator *input.Validator
	converter      *output.PlannerConverter
}

// NewGenerator creates a new pipeline generator with the given configuration.
func NewGenerator(config GeneratorConfig) *Generator {
	if config.Dial == nil {
		config.Dial = validator.EthDial
	}
	if config.Probe == (validator.ProbeConfig{}) {
		config.Probe = validator.DefaultProbeConfig()
	}
	if config.FeesPath == "" {
		config.FeesPath = filepath.Join(config.InputDir, input.FeesFileName)
	}

	return &Generator{
		config:         config,
		inputLoader:    input.NewLoader(),
		inputValidator: input.NewValidator(),
		converter:      output.NewPlannerConverter(),
	}
}

// GenerateResult contains the results of the generation process.
type GenerateResult struct {
	// Number of chains processed
	ChainsProcessed int

	// Validation results for each chain
	ValidationResults map[string]*input.ValidationResult

	// Endpoints that failed the probe, keyed by chain
	DroppedEndpoints map[string][]string

	// Path where planner config was written
	OutputPath string

	// Any warnings during generation
	Warnings []string
}

// Generate runs the complete configuration generation pipeline.
func (g *Generator) Generate(ctx context.Context) (*GenerateResult, error) {
	result := &GenerateResult{
		ValidationResults: make(map[string]*input.ValidationResult),
		DroppedEndpoints:  make(map[string][]string),
		Warnings:          make([]string, 0),
	}

	// Step 1 (Optional): Refresh the input directory from the remote source
	if g.config.RemoteSource != "" {
		if err := registry.Download(ctx, g.config.RemoteSource, g.config.InputDir); err != nil {
			return nil, fmt.Errorf("failed to fetch chain configs: %w", err)
		}
	}

	// Step 2: Load input configs
	log.Info().Str("dir", g.config.InputDir).Msg("Loading chain configs")
	inputConfigs, err := g.inputLoader.LoadAllConfigs(g.config.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load input configs: %w", err)
	}
	fees, err := g.inputLoader.LoadFeeDefaults(g.config.FeesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee defaults: %w", err)
	}
	if err := input.ValidateFeeDefaults(fees); err != nil {
		return nil, fmt.Errorf("invalid fee defaults: %w", err)
	}
	log.Info().Int("chains", len(inputConfigs)).Msg("Loaded chain configs")

	// Step 3: Validate input configs
	validationResults, validationErr := g.inputValidator.ValidateAll(inputConfigs)
	result.ValidationResults = validationResults

	keys := make([]string, 0, len(validationResults))
	for key := range validationResults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		valResult := validationResults[key]
		if !valResult.IsValid {
			for _, err := range valResult.Errors {
				log.Error().Str("chain", key).Msg(err.Error())
			}
		}
		for _, warning := range valResult.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", key, warning))
		}
	}
	if validationErr != nil {
		return result, validationErr
	}

	// Step 4: Probe the RPC endpoints of every chain
	healthy := map[string][]input.APIEndpoint{}
	if !g.config.SkipNetworkValidation {
		healthy, err = g.probeEndpoints(ctx, inputConfigs)
		if err != nil {
			return result, err
		}
		for key, chainInput := range inputConfigs {
			if dropped := droppedEndpoints(chainInput.Chain.RPCs, healthy[key]); len(dropped) > 0 {
				result.DroppedEndpoints[key] = dropped
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: dropped %d unhealthy endpoint(s)", key, len(dropped)))
			}
		}
	}

	// Step 5: Convert to the planner config
	plannerConfig, err := g.converter.Convert(inputConfigs, fees, healthy)
	if err != nil {
		return result, fmt.Errorf("failed to convert to planner config: %w", err)
	}
	result.ChainsProcessed = len(plannerConfig.Chains)

	// Step 6: Write the planner config
	if g.config.OutputPath != "" {
		format := g.config.OutputFormat
		if format == FormatAuto || format == "" {
			format = formatFromExtension(g.config.OutputPath)
		}
		if err := output.WritePlannerConfig(plannerConfig, g.config.OutputPath, format == FormatJSON); err != nil {
			return result, err
		}
		result.OutputPath = g.config.OutputPath
		log.Info().Str("path", g.config.OutputPath).Msg("Planner config written")
	}

	log.Info().Int("chains", result.ChainsProcessed).Msg("Config generation complete")
	return result, nil
}

// probeEndpoints validates each chain's endpoints concurrently. A chain left
// without a healthy endpoint fails the run.
func (g *Generator) probeEndpoints(
	ctx context.Context,
	inputConfigs map[string]*input.ChainInput,
) (map[string][]input.APIEndpoint, error) {
	var mu sync.Mutex
	healthy := make(map[string][]input.APIEndpoint, len(inputConfigs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentProbes)
	for key, chainInput := range inputConfigs {
		eg.Go(func() error {
			log.Info().Str("chain", key).Int("endpoints", len(chainInput.Chain.RPCs)).Msg("Probing RPC endpoints")
			endpoints := validator.ValidateRpcEndpoints(
				egCtx,
				chainInput.Chain.RPCs,
				chainInput.Chain.ChainID,
				g.config.Dial,
				g.config.Probe,
			)
			if len(endpoints) == 0 {
				return fmt.Errorf("chain %s has no healthy RPC endpoints", key)
			}
			mu.Lock()
			healthy[key] = endpoints
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return healthy, nil
}

func droppedEndpoints(all, healthy []input.APIEndpoint) []string {
	kept := make(map[string]struct{}, len(healthy))
	for _, endpoint := range healthy {
		kept[endpoint.URL] = struct{}{}
	}
	var dropped []string
	for _, endpoint := range all {
		if _, ok := kept[endpoint.URL]; !ok {
			dropped = append(dropped, endpoint.URL)
		}
	}
	return dropped
}

// formatFromExtension determines output format from file extension.
func formatFromExtension(path string) OutputFormat {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return FormatJSON
	}
	return FormatTOML
}
