package main

import (
	"fmt"

	"go.uber.org/zap"

	"cronista/internal/config"
	"cronista/internal/store"
)

var configPath string

// loadProject loads the project config, the heuristics, and opens the store.
func loadProject() (*config.ProjectConfig, *config.Heuristics, *store.Store, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	h, err := config.LoadHeuristics(cfg.Heuristics)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, h, store.Open(cfg), nil
}

// newLogger builds the logger used when applying mutations. Dry runs print
// previews to stdout instead and never log.
func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, nil
}
