package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mrimodality/pkg/generator"
	"mrimodality/pkg/visualization"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var batches int
	var save bool

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Draw batches from the training and validation generators",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batches <= 0 {
				return fmt.Errorf("--batches must be positive, got %d", batches)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			splits, err := loadSplits(cfg)
			if err != nil {
				return err
			}

			var mu sync.Mutex
			stats := make(map[string]generator.Stats)

			gens := make([]*generator.Generator, len(splits))
			for i, s := range splits {
				if gens[i], err = newGenerator(cfg, s, i, logger); err != nil {
					return err
				}
			}

			group, gctx := errgroup.WithContext(cmd.Context())
			for i, g := range gens {
				name := splits[i].name
				group.Go(func() error {
					for n := 0; n < batches; n++ {
						b, err := g.NextBatch(gctx)
						if err != nil {
							return fmt.Errorf("%s batch %d: %w", name, n, err)
						}
						logger.Info("batch ready", "split", name, "batch", n, "size", b.Len(), "labels", labelHistogram(b.Labels()))
						if save {
							dir := filepath.Join(cfg.Output.PreviewDir, name, fmt.Sprintf("batch_%03d", n))
							if _, err := visualization.SaveBatch(b, dir); err != nil {
								return fmt.Errorf("save %s batch %d: %w", name, n, err)
							}
						}
					}
					mu.Lock()
					stats[name] = g.Stats()
					mu.Unlock()
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))
			return nil
		},
	}

	cmd.Flags().IntVarP(&batches, "batches", "n", 1, "Number of batches to draw per split")
	cmd.Flags().BoolVar(&save, "save", false, "Write batch slices as images under output.previewDir")
	return cmd
}

// labelHistogram renders counts as "label:count" pairs in label order
func labelHistogram(labels []int) string {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Itoa(k) + ":" + strconv.Itoa(counts[k])
	}
	return strings.Join(parts, " ")
}

func renderStats(stats map[string]generator.Stats) string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		s := stats[name]
		rows = append(rows, []string{
			name,
			strconv.Itoa(s.Batches),
			strconv.Itoa(s.Slices),
			strconv.Itoa(s.Draws),
			strconv.Itoa(s.SkippedLabels),
			strconv.Itoa(s.Failures),
		})
	}
	return renderTable(
		[]string{"Split", "Batches", "Slices", "Draws", "Skipped labels", "Failures"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}
