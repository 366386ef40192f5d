package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ProjectConfig struct {
	Project     string      `yaml:"project"`
	Version     int         `yaml:"version"`
	Data        DataConfig  `yaml:"data"`
	Collections Collections `yaml:"collections"`
	Heuristics  string      `yaml:"heuristics"`
}

type DataConfig struct {
	Dir           string `yaml:"dir"`
	PartitionsDir string `yaml:"partitions_dir"`
}

type Collections struct {
	Events     string `yaml:"events"`
	Characters string `yaml:"characters"`
	Factions   string `yaml:"factions"`
	Locations  string `yaml:"locations"`
	Laws       string `yaml:"laws"`
	Rolls      string `yaml:"rolls"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	cfg := defaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := validateProjectConfig(cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return cfg, nil
}

func defaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Version: 1,
		Data: DataConfig{
			Dir:           "data",
			PartitionsDir: filepath.Join("data", "chapters"),
		},
		Collections: Collections{
			Events:     "events.json",
			Characters: "characters.json",
			Factions:   "factions.json",
			Locations:  "locations.json",
			Laws:       "laws.json",
			Rolls:      "rolls.json",
		},
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Data.Dir) == "" {
		return fmt.Errorf("data dir is required")
	}
	if strings.TrimSpace(cfg.Data.PartitionsDir) == "" {
		return fmt.Errorf("partitions dir is required")
	}

	files := map[string]string{
		"events":     cfg.Collections.Events,
		"characters": cfg.Collections.Characters,
		"factions":   cfg.Collections.Factions,
		"locations":  cfg.Collections.Locations,
		"laws":       cfg.Collections.Laws,
		"rolls":      cfg.Collections.Rolls,
	}
	seen := make(map[string]string)
	for name, file := range files {
		if strings.TrimSpace(file) == "" {
			return fmt.Errorf("collection file for %s is required", name)
		}
		if prev, exists := seen[file]; exists {
			return fmt.Errorf("collections %s and %s share file %s", prev, name, file)
		}
		seen[file] = name
	}

	return nil
}

// CollectionPath resolves a collection file name against the data directory.
func (c *ProjectConfig) CollectionPath(file string) string {
	return filepath.Join(c.Data.Dir, file)
}
