package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration without reading a file.
func Default() *GlobalConfig {
	cfg, err := Load("")
	if err != nil {
		// defaults are static; failing here is a programming error
		panic(err)
	}
	return cfg
}

// Save writes cfg as YAML under the `aptx:` root key.
func Save(path string, cfg *GlobalConfig) error {
	data, err := yaml.Marshal(configRoot{Aptx: *cfg})
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
