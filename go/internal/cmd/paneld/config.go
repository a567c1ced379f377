package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the venue catalog loaded from config.yaml: which zones exist and
// which turn lengths operators may offer.
type Config struct {
	Zones     []ZoneConfig   `yaml:"zones"`
	Durations DurationConfig `yaml:"durations"`
}

// ZoneConfig maps a zone code to its display label.
type ZoneConfig struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// DurationConfig holds the turn-length presets in minutes.
type DurationConfig struct {
	Offered []int `yaml:"offered"`
	Default int   `yaml:"default"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(config.Durations.Offered) == 0 {
		config.Durations.Offered = []int{10, 20, 30}
	}
	if config.Durations.Default == 0 {
		config.Durations.Default = 20
	}
	return &config, nil
}

// zoneLabel resolves a zone code to its label, falling back to the code for
// zones missing from the catalog.
func (c *Config) zoneLabel(code string) string {
	for _, z := range c.Zones {
		if z.Code == code {
			return z.Label
		}
	}
	return code
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
