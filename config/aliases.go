package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AliasConfig maps short location codes typed by users to canonical location names.
type AliasConfig struct {
	Locations map[string]string `yaml:"locations"`
}

// DefaultAliases returns the built-in syndicate shortcuts.
func DefaultAliases() map[string]string {
	return map[string]string{
		"1": "Arbiters of Hexis",
		"2": "Cephalon Suda",
		"3": "Steel Meridian",
		"4": "Entrati",
	}
}

// Keys returns the alias codes in display order.
func (a AliasConfig) Keys() []string {
	keys := make([]string, 0, len(a.Locations))
	for k := range a.Locations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a AliasConfig) validate() error {
	for code, name := range a.Locations {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("aliases.locations contains an empty code")
		}
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("aliases.locations[%s] must name a location", code)
		}
	}
	return nil
}

// LoadAliases reads a standalone alias file of the form
//
//	locations:
//	  "1": "Arbiters of Hexis"
func LoadAliases(path string) (*AliasConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aliases file: %w", err)
	}
	var cfg AliasConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse aliases file: %w", err)
	}
	trimmed := make(map[string]string, len(cfg.Locations))
	for code, name := range cfg.Locations {
		trimmed[strings.TrimSpace(code)] = strings.TrimSpace(name)
	}
	cfg.Locations = trimmed
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
