// Command generate runs the config generation pipeline to transform
// human-readable chain configs into the generated planner config.
//
// Usage:
//
//	go run ./config_manager/cmd/generate \
//	  --input ./configs/chains \
//	  --output ./generated_configs/planner_config.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/pipeline"
	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/validator"
)

func main() {
	// Define command-line flags
	inputDir := flag.String("input", "./configs/chains", "Directory containing human-readable chain configs")
	outputPath := flag.String("output", "./generated_configs/planner_config.toml", "Output path for planner config")
	format := flag.String("format", "auto", "Output format: auto, toml, json")
	remote := flag.String("remote", "", "Fetch chain configs from this go-getter source into --input first")
	feesPath := flag.String("fees", "", "Fee defaults file (default: <input>/fees.toml)")
	skipNetwork := flag.Bool("skip-network", false, "Skip network validation of endpoints")
	retries := flag.Uint("probe-retries", 3, "Attempts per RPC call while probing")
	timeout := flag.Duration("probe-timeout", 10*time.Second, "Timeout of a single RPC call while probing")
	validate := flag.Bool("validate-only", false, "Only validate configs, don't generate")

	flag.Parse()

	// Validate inputs
	if *remote == "" {
		if _, err := os.Stat(*inputDir); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error: input directory does not exist: %s\n", *inputDir)
			os.Exit(1)
		}
	}

	probe := validator.DefaultProbeConfig()
	probe.RetryAttempts = *retries
	probe.Timeout = *timeout

	config := pipeline.GeneratorConfig{
		InputDir:              *inputDir,
		RemoteSource:          *remote,
		OutputPath:            *outputPath,
		OutputFormat:          parseFormat(*format),
		FeesPath:              *feesPath,
		SkipNetworkValidation: *skipNetwork,
		Probe:                 probe,
	}

	if *validate {
		config.OutputPath = ""
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Starting config generation pipeline...")
	fmt.Println()

	result, err := pipeline.NewGenerator(config).Generate(ctx)

	if result != nil {
		printSummary(result)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error while generating configs: %v\n", err)
		os.Exit(1)
	}

	if result.OutputPath != "" {
		fmt.Printf("\nOutput file: %s\n", result.OutputPath)
	}

	fmt.Println("\nFinished the generation pipeline!")
}

func printSummary(result *pipeline.GenerateResult) {
	fmt.Println("\nSummary:")
	fmt.Printf("Chains processed: %d\n", result.ChainsProcessed)

	if len(result.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, warning := range result.Warnings {
			fmt.Printf("\t- %s\n", warning)
		}
	}

	keys := make([]string, 0, len(result.ValidationResults))
	for key := range result.ValidationResults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		valResult := result.ValidationResults[key]
		if valResult.IsValid {
			continue
		}
		fmt.Printf("%s: validation failed\n", key)
		for _, err := range valResult.Errors {
			fmt.Printf("\t- %v\n", err)
		}
	}
}

func parseFormat(s string) pipeline.OutputFormat {
	switch strings.ToLower(s) {
	case "toml":
		return pipeline.FormatTOML
	case "json":
		return pipeline.FormatJSON
	default:
		return pipeline.FormatAuto
	}
}
