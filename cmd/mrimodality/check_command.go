package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mrimodality/internal/models"
	"mrimodality/pkg/architecture"
	"mrimodality/pkg/config"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check manifests and architecture files against the generator settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			splits, err := loadSplits(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderManifestSummary(splits, cfg.Generator.Modalities))

			if err := checkArchitectures(out, cfg); err != nil {
				return err
			}

			if !probe {
				return nil
			}
			failed := 0
			for i, s := range splits {
				g, err := newGenerator(cfg, s, i, logger)
				if err != nil {
					return err
				}
				var rows [][]string
				for _, rec := range s.index.Records() {
					if rec.Modality < 0 || rec.Modality >= cfg.Generator.Modalities {
						continue
					}
					if _, err := g.ExtractVolume(rec.Path); err != nil {
						rows = append(rows, []string{s.name, rec.Path, fileSize(rec.Path), err.Error()})
					}
				}
				failed += len(rows)
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"Split", "Path", "Size", "Error"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
					))
				}
			}
			fmt.Fprintf(out, "Probe complete: %d unusable volume(s)\n", failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Load every usable volume through the slice pipeline")
	return cmd
}

func renderManifestSummary(splits []split, modalities int) string {
	var rows [][]string
	for _, s := range splits {
		counts := s.index.CountByModality()
		for _, label := range s.index.Modalities() {
			usable := "yes"
			if label < 0 || label >= modalities {
				usable = "no"
			}
			rows = append(rows, []string{s.name, strconv.Itoa(label), strconv.Itoa(counts[label]), usable})
		}
	}
	return renderTable(
		[]string{"Split", "Modality", "Volumes", "Usable"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	)
}

// checkArchitectures verifies the slice network and, if configured, the
// aggregator network. Missing files are reported but not fatal.
func checkArchitectures(out io.Writer, cfg *config.Config) error {
	classes := cfg.Generator.Modalities
	dir := cfg.Model.ArchitectureDir

	contract, err := architecture.Load(dir, cfg.Model.Network, classes)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(out, "Architecture %s not found; skipping shape check\n", architecture.FileName(cfg.Model.Network, classes))
	case err != nil:
		return err
	default:
		if err := contract.CheckGenerator(models.SliceShape, classes); err != nil {
			return fmt.Errorf("%s: %w", architecture.FileName(cfg.Model.Network, classes), err)
		}
		fmt.Fprintf(out, "Architecture %s accepts %s inputs and %d classes\n",
			architecture.FileName(cfg.Model.Network, classes), models.SliceShape, classes)
	}

	if cfg.Model.Aggregator == "" {
		return nil
	}
	agg, err := architecture.Load(dir, cfg.Model.Aggregator, classes)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(out, "Architecture %s not found; skipping shape check\n", architecture.FileName(cfg.Model.Aggregator, classes))
	case err != nil:
		return err
	default:
		if err := agg.CheckAggregator(cfg.Generator.SlicesPerVolume, classes); err != nil {
			return fmt.Errorf("%s: %w", architecture.FileName(cfg.Model.Aggregator, classes), err)
		}
		fmt.Fprintf(out, "Architecture %s accepts %d slice predictions\n",
			architecture.FileName(cfg.Model.Aggregator, classes), cfg.Generator.SlicesPerVolume)
	}
	return nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	return humanize.Bytes(uint64(info.Size()))
}
