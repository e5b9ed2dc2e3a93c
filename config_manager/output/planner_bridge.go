package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LoadPlannerConfig loads a planner configuration from a file.
// Supports both TOML and JSON formats based on file extension.
func LoadPlannerConfig(filePath string) (*PlannerConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read planner config: %w", err)
	}

	var config PlannerConfig

	if strings.HasSuffix(filePath, ".json") {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON planner config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML planner config: %w", err)
		}
	}

	return &config, nil
}

// WritePlannerConfig writes config to filePath as JSON or TOML, creating parent
// directories as needed.
func WritePlannerConfig(config *PlannerConfig, filePath string, asJSON bool) error {
	var (
		data []byte
		err  error
	)
	if asJSON {
		data, err = json.MarshalIndent(config, "", "  ")
	} else {
		data, err = toml.Marshal(config)
	}
	if err != nil {
		return fmt.Errorf("failed to encode planner config: %w", err)
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write planner config: %w", err)
	}
	return nil
}
