package main

import (
	"errors"
	"fmt"
	"os"

	"docwatch/internal/app"
	"docwatch/internal/render"
	"docwatch/internal/snapshot"

	"github.com/spf13/cobra"
)

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var (
		manifestPath string
		outPath      string
		draw         bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Score every table pair listed in a manifest",
		Long: `Score every table pair listed in a manifest. The run is persisted when
a store is configured.

Manifest format:
  tables:
    - name: 项目进度表
      baseline: snapshots/2025-01-01/progress.csv
      current: snapshots/2025-01-08/progress.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if manifestPath == "" {
				return errors.New("--manifest is required")
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, closeLog := opts.logger(cfg)
			defer closeLog()

			pairs, err := snapshot.LoadManifest(manifestPath)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Run(cmd.Context(), pairs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				if err := writeJSON(f, result); err != nil {
					return err
				}
			} else if !draw {
				return writeJSON(out, result)
			}

			if draw {
				if err := render.Summary(out, result.ScoreSet); err != nil {
					return err
				}
				fmt.Fprintln(out)
				return render.Heatmap(out, result.Heatmap)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML manifest listing baseline/current pairs")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the run result JSON to this file (default: stdout)")
	cmd.Flags().BoolVar(&draw, "render", false, "Print a summary and the heatmap to the terminal")
	return cmd
}
