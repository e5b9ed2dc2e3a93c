package input

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "input").Logger()
}

// FeesFileName is skipped when loading chain configs and read by LoadFeeDefaults
const FeesFileName = "fees.toml"

// Loader loads and parses human-readable chain configuration files.
type Loader struct{}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadChainConfig loads a single chain configuration from a TOML file.
func (l *Loader) LoadChainConfig(filePath string) (*ChainInput, error) {
	if !strings.HasSuffix(filePath, ".toml") {
		return nil, fmt.Errorf("config file must be a .toml file: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	var config ChainInput
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return &config, nil
}

// LoadAllConfigs loads all chain configurations from a directory.
// Returns a map of chain key to ChainInput.
func (l *Loader) LoadAllConfigs(dirPath string) (map[string]*ChainInput, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory %s: %w", dirPath, err)
	}

	configs := make(map[string]*ChainInput)
	var errs []error

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") || entry.Name() == FeesFileName {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		config, err := l.LoadChainConfig(filePath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}

		if config.Chain.Key == "" {
			errs = append(errs, fmt.Errorf("%s: missing chain.key", entry.Name()))
			continue
		}

		if _, exists := configs[config.Chain.Key]; exists {
			errs = append(errs, fmt.Errorf("%s: duplicate chain key %s", entry.Name(), config.Chain.Key))
			continue
		}

		configs[config.Chain.Key] = config
	}

	// partial loading is allowed, broken files are reported and skipped
	for _, e := range errs {
		log.Warn().Err(e).Msg("Skipping chain config")
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("no valid chain configurations found in %s", dirPath)
	}

	return configs, nil
}

// LoadFeeDefaults reads the global fee settings. An empty path or a missing
// file yields DefaultFeeDefaults, fields left out of the file keep their default.
func (l *Loader) LoadFeeDefaults(filePath string) (FeeDefaults, error) {
	defaults := DefaultFeeDefaults()
	if filePath == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return defaults, nil
	}
	if err != nil {
		return FeeDefaults{}, fmt.Errorf("failed to read fees file %s: %w", filePath, err)
	}

	if err := toml.Unmarshal(data, &defaults); err != nil {
		return FeeDefaults{}, fmt.Errorf("failed to parse fees file %s: %w", filePath, err)
	}
	return defaults, nil
}
