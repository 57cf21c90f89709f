// Package config provides configuration loading and management for ctcvolume.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"ctcvolume/pkg/logging"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers bounds how many frames are decoded or written at once
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"processing"`

	// Cache parameters
	Cache struct {
		// FrameCacheMB is the size of the decoded-frame cache; 0 disables it
		FrameCacheMB int `yaml:"frameCacheMB"`
	} `yaml:"cache"`

	// Output parameters
	Output struct {
		// CompressTIFF writes Deflate-compressed frames
		CompressTIFF bool `yaml:"compressTiff"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Logging sink
	Logging logging.Config `yaml:"logging"`

	// Segmentation parameters
	Segmentation struct {
		// Threshold names the default threshold method
		Threshold string `yaml:"threshold"`
	} `yaml:"segmentation"`

	// Preview parameters
	Preview struct {
		// Axis is the default slicing axis: t, y or x
		Axis string `yaml:"axis"`

		// Width resizes previews to this width; 0 keeps the native size
		Width int `yaml:"width"`

		// Quality is the JPEG quality, 1-100
		Quality int `yaml:"quality"`
	} `yaml:"preview"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumWorkers = runtime.NumCPU()

	cfg.Cache.FrameCacheMB = 256

	cfg.Output.CompressTIFF = false
	cfg.Output.Verbose = false

	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxAgeDays = 28

	cfg.Segmentation.Threshold = "otsu"

	cfg.Preview.Axis = "t"
	cfg.Preview.Width = 0
	cfg.Preview.Quality = 90

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges
func (cfg *Config) Validate() error {
	if cfg.Processing.NumWorkers < 1 {
		return fmt.Errorf("processing.numWorkers must be at least 1, got %d", cfg.Processing.NumWorkers)
	}
	if cfg.Cache.FrameCacheMB < 0 {
		return fmt.Errorf("cache.frameCacheMB must not be negative, got %d", cfg.Cache.FrameCacheMB)
	}
	if cfg.Preview.Quality < 1 || cfg.Preview.Quality > 100 {
		return fmt.Errorf("preview.quality must be in 1-100, got %d", cfg.Preview.Quality)
	}
	if cfg.Preview.Width < 0 {
		return fmt.Errorf("preview.width must not be negative, got %d", cfg.Preview.Width)
	}
	return nil
}

// LoggingConfig returns the logging section with the verbose flag applied
func (cfg *Config) LoggingConfig() logging.Config {
	lc := cfg.Logging
	lc.Verbose = cfg.Output.Verbose
	return lc
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
