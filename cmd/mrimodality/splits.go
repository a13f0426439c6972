package main

import (
	"fmt"
	"log/slog"

	"mrimodality/pkg/config"
	"mrimodality/pkg/generator"
	"mrimodality/pkg/manifest"
	"mrimodality/pkg/volume"
)

type split struct {
	name     string
	manifest string
	index    *manifest.Index
}

// loadSplits reads the training manifest and, when configured, the validation one
func loadSplits(cfg *config.Config) ([]split, error) {
	splits := []split{{name: "train", manifest: cfg.Data.TrainManifest}}
	if cfg.Data.ValidManifest != "" {
		splits = append(splits, split{name: "valid", manifest: cfg.Data.ValidManifest})
	}
	for i := range splits {
		idx, err := manifest.Load(splits[i].manifest)
		if err != nil {
			return nil, fmt.Errorf("%s split: %w", splits[i].name, err)
		}
		splits[i].index = idx
	}
	return splits, nil
}

// newGenerator builds a generator for one split. Splits get distinct seeds so
// that a fixed configuration seed still samples them independently.
func newGenerator(cfg *config.Config, s split, ordinal int, logger *slog.Logger) (*generator.Generator, error) {
	opts := []generator.Option{generator.WithLogger(logger.With("split", s.name))}
	if cfg.Generator.Seed != 0 {
		opts = append(opts, generator.WithSeed(cfg.Generator.Seed+uint64(ordinal)))
	}
	g, err := generator.New(s.index, volume.NewNIfTILoader(), generator.Options{
		BatchSize:              cfg.Generator.BatchSize,
		Modalities:             cfg.Generator.Modalities,
		SlicesPerVolume:        cfg.Generator.SlicesPerVolume,
		MaxConsecutiveFailures: cfg.Generator.MaxConsecutiveFailures,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s split: %w", s.name, err)
	}
	return g, nil
}
