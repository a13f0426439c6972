package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mrimodality/pkg/sagittal"
	"mrimodality/pkg/visualization"
	"mrimodality/pkg/volume"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var axes string
	var outDir string

	cmd := &cobra.Command{
		Use:   "inspect <volume>",
		Short: "Render cross-sections of a volume in canonical orientation",
		Args:  cobra.ExactArgs(1),
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

			vol, err := volume.NewNIfTILoader().Load(args[0])
			if err != nil {
				return err
			}
			start, count := sagittal.Window(vol.Nx, cfg.Generator.SlicesPerVolume)
			fmt.Fprintf(out, "Volume %s: %dx%dx%d (sagittal window %d..%d)\n",
				filepath.Base(args[0]), vol.Nx, vol.Ny, vol.Nz, start, start+count-1)

			if outDir == "" {
				outDir = filepath.Join(cfg.Output.PreviewDir, "inspect",
					strings.TrimSuffix(strings.TrimSuffix(filepath.Base(args[0]), ".gz"), ".nii"))
			}
			viewer := visualization.NewViewer(vol)
			for _, axis := range strings.Split(axes, ",") {
				axis = strings.TrimSpace(axis)
				if axis == "" {
					continue
				}
				dir := filepath.Join(outDir, axis)
				if err := viewer.SaveSliceSequence(axis, dir); err != nil {
					return err
				}
				logger.Info("saved sections", "axis", axis, "dir", dir)
			}
			fmt.Fprintf(out, "Sections written to %s\n", outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&axes, "axes", "x", "Comma separated axes to render (x is sagittal)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory (default <previewDir>/inspect/<volume>)")
	return cmd
}
