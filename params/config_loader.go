package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LoadRuntimeConfig reads a YAML runtime-config file (the same shape as
// consensus-spec "config.yaml" files) and overlays it onto MainnetPreset.
// The preset itself is never loaded from file; only RuntimeConfig's
// network-specific fields are.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("params: reading config file: %w", err)
	}

	cfg := DefaultRuntimeConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("params: parsing config file: %w", err)
	}
	cfg.Preset = MainnetPreset

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
