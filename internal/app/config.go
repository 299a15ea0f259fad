package app

import (
	"errors"
	"fmt"

	"github.com/vk/ctwgo/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Inputs are the paths to enumerate; empty means the boot class path.
	Inputs   []string
	Settings *config.Config

	LogFormat  string
	LogLevel   string
	StatusPort int
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Settings == nil {
		return nil, errors.New("settings are required")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("invalid status port %d", cfg.StatusPort)
	}
	return &cfg, nil
}
