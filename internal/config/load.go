package config

import (
	"fmt"
	"os"

	"parareq/internal/spec"
)

// Load reads, parses, normalizes, and validates a config file.
func Load(path string) (spec.Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return spec.Config{}, err
	}
	if err := Validate(&cfg); err != nil {
		return spec.Config{}, err
	}
	return cfg, nil
}

// LoadUnvalidated reads, parses, and normalizes a config file without
// validating it. Callers that apply flag overrides validate afterwards.
func LoadUnvalidated(path string) (spec.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spec.Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := spec.ParseConfig(data)
	if err != nil {
		return spec.Config{}, err
	}
	Normalize(&cfg)
	return cfg, nil
}
