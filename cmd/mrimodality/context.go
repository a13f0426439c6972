package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"mrimodality/pkg/config"
	"mrimodality/pkg/logging"
)

const defaultConfigPath = "mrimodality.yaml"

type commandContext struct {
	configFlag string
	logLevel   string

	config   *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) configPath() string {
	if p := strings.TrimSpace(c.configFlag); p != "" {
		return p
	}
	return defaultConfigPath
}

// ensureConfig loads, validates and resolves the configuration once
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	path := c.configPath()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.ResolvePaths(filepath.Dir(path))
	c.config = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if cfg.Output.Verbose {
		level = "debug"
	}
	logger, closeFn, err := logging.New(logging.Options{
		Level:      level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	c.logger, c.closeLog = logger, closeFn
	return logger, nil
}

func (c *commandContext) close() {
	if c.closeLog != nil {
		c.closeLog()
	}
}
