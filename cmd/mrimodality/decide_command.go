package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mrimodality/pkg/aggregate"
)

func newDecideCommand(ctx *commandContext) *cobra.Command {
	var features bool

	cmd := &cobra.Command{
		Use:   "decide <predictions>",
		Short: "Combine per-slice modality predictions into a volume decision",
		Long: `Reads one line of whitespace separated class probabilities per slice
and prints the averaged decision. With --features the flattened input vector
for the volume-level network is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			preds, err := readPredictions(args[0])
			if err != nil {
				return err
			}

			if features {
				vec, err := aggregate.Features(preds, cfg.Generator.SlicesPerVolume, cfg.Generator.Modalities)
				if err != nil {
					return err
				}
				parts := make([]string, len(vec))
				for i, v := range vec {
					parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
				}
				fmt.Fprintln(out, strings.Join(parts, " "))
				return nil
			}

			label, confidence, err := aggregate.MeanDecision(preds)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Modality %d (mean probability %.3f over %d slices)\n", label, confidence, len(preds))
			return nil
		},
	}

	cmd.Flags().BoolVar(&features, "features", false, "Print the volume network input vector")
	return cmd
}

func readPredictions(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var preds [][]float64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, line, err)
			}
			row[i] = v
		}
		preds = append(preds, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return preds, nil
}
