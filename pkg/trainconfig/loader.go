package trainconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a training config from the given file path, merges it over
// the built-in defaults, and validates the result.
//
// The file format is determined by extension: .yaml/.yml for YAML, .json
// for JSON. Unrecognized extensions try YAML first, then JSON. An empty
// path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("training config not found: %s", path)
		}
		return nil, fmt.Errorf("read training config: %w", err)
	}

	if err := unmarshalInto(data, path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes merges raw config bytes over the defaults and validates.
// The path parameter is used for format detection and error messages.
func LoadFromBytes(data []byte, path string) (*Config, error) {
	cfg := Default()
	if err := unmarshalInto(data, path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// unmarshalInto overlays file data onto a pre-populated config. Fields
// absent from the file keep their default values; unknown keys are
// ignored by both decoders.
func unmarshalInto(data []byte, path string, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("invalid JSON in training config: %w", err)
		}
		return nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("invalid YAML in training config: %w", err)
		}
		return nil
	default:
		yamlErr := yaml.Unmarshal(data, cfg)
		if yamlErr == nil {
			return nil
		}
		if jsonErr := json.Unmarshal(data, cfg); jsonErr == nil {
			return nil
		}
		return fmt.Errorf("failed to parse training config (tried YAML and JSON): %w", yamlErr)
	}
}

// Serialize renders the config as compact JSON for handing to the
// training job on its command line.
func (c *Config) Serialize() ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("serialize training config: %w", err)
	}
	return b, nil
}
