// Package config provides configuration loading and management for mrimodality.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Data locates the manifests for each split
	Data struct {
		// TrainManifest lists the volumes used to estimate model parameters
		TrainManifest string `yaml:"trainManifest"`

		// ValidManifest lists the volumes scored after each epoch
		ValidManifest string `yaml:"validManifest"`
	} `yaml:"data"`

	// Generator parameters
	Generator struct {
		// BatchSize is the number of sagittal slices per training step
		BatchSize int `yaml:"batchSize"`

		// Modalities is the number of MRI contrasts being classified
		Modalities int `yaml:"modalities"`

		// SlicesPerVolume is the number of middle sagittal slices taken per draw
		SlicesPerVolume int `yaml:"slicesPerVolume"`

		// MaxConsecutiveFailures is how many unusable draws in a row abort a batch
		MaxConsecutiveFailures int `yaml:"maxConsecutiveFailures"`

		// Seed makes record sampling reproducible; 0 seeds from entropy
		Seed uint64 `yaml:"seed"`
	} `yaml:"generator"`

	// Model locates the architecture descriptions
	Model struct {
		// Network is the slice predictor name, e.g. CNN
		Network string `yaml:"network"`

		// Aggregator is the volume-level network name, e.g. DNN
		Aggregator string `yaml:"aggregator"`

		// ArchitectureDir holds <network>_<modalities>mod.json files
		ArchitectureDir string `yaml:"architectureDir"`
	} `yaml:"model"`

	// Logging parameters
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`

		// File enables a rotating log file instead of stderr
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
	} `yaml:"logging"`

	// Output parameters
	Output struct {
		// PreviewDir is where preview batches are written as images
		PreviewDir string `yaml:"previewDir"`

		// Verbose logs every drawn record
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Data.TrainManifest = "cross_valid_fns/train.filenames.txt"
	cfg.Data.ValidManifest = "cross_valid_fns/valid.filenames.txt"

	cfg.Generator.BatchSize = 100
	cfg.Generator.Modalities = 5
	cfg.Generator.SlicesPerVolume = 30
	cfg.Generator.MaxConsecutiveFailures = 1000

	cfg.Model.Network = "CNN"
	cfg.Model.Aggregator = "DNN"
	cfg.Model.ArchitectureDir = "model"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxAgeDays = 28

	cfg.Output.PreviewDir = "preview"

	return cfg
}

// Validate checks the values that the generator cannot recover from
func (c *Config) Validate() error {
	var errs []error
	if c.Generator.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("generator.batchSize must be positive, got %d", c.Generator.BatchSize))
	}
	if c.Generator.Modalities <= 0 {
		errs = append(errs, fmt.Errorf("generator.modalities must be positive, got %d", c.Generator.Modalities))
	}
	if c.Generator.SlicesPerVolume <= 0 {
		errs = append(errs, fmt.Errorf("generator.slicesPerVolume must be positive, got %d", c.Generator.SlicesPerVolume))
	}
	if c.Generator.MaxConsecutiveFailures <= 0 {
		errs = append(errs, fmt.Errorf("generator.maxConsecutiveFailures must be positive, got %d", c.Generator.MaxConsecutiveFailures))
	}
	if strings.TrimSpace(c.Data.TrainManifest) == "" {
		errs = append(errs, errors.New("data.trainManifest is required"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// ResolvePaths makes relative data and model paths relative to baseDir
func (c *Config) ResolvePaths(baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.Data.TrainManifest = resolve(c.Data.TrainManifest)
	c.Data.ValidManifest = resolve(c.Data.ValidManifest)
	c.Model.ArchitectureDir = resolve(c.Model.ArchitectureDir)
	c.Output.PreviewDir = resolve(c.Output.PreviewDir)
	c.Logging.File = resolve(c.Logging.File)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

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

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
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
