package main

import (
	"errors"
	"fmt"

	"docwatch/internal/app"
	"docwatch/internal/models"
	"docwatch/internal/render"
	"docwatch/internal/snapshot"

	"github.com/spf13/cobra"
)

func newCompareCmd(opts *globalOptions) *cobra.Command {
	var (
		baselinePath string
		currentPath  string
		name         string
		format       string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Score the changes between two snapshots of one table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baselinePath == "" || currentPath == "" {
				return errors.New("--baseline and --current are required")
			}
			if format != "json" && format != "human" {
				return fmt.Errorf("unknown format %q (want json or human)", format)
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.Store.Driver = ""
			logger, closeLog := opts.logger(cfg)
			defer closeLog()

			baseline, err := snapshot.LoadCSV(baselinePath)
			if err != nil {
				return fmt.Errorf("load baseline: %w", err)
			}
			current, err := snapshot.LoadCSV(currentPath)
			if err != nil {
				return fmt.Errorf("load current: %w", err)
			}
			if name == "" {
				name = current.Name
			}

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Pipeline.Compare(cmd.Context(), models.TablePair{Name: name, Baseline: baseline, Current: current})
			if err != nil {
				return err
			}

			if format == "human" {
				return render.Changes(cmd.OutOrStdout(), &result.Summary)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&baselinePath, "baseline", "", "Baseline snapshot CSV")
	cmd.Flags().StringVar(&currentPath, "current", "", "Current snapshot CSV")
	cmd.Flags().StringVar(&name, "name", "", "Table name (default: current file name)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or human")
	return cmd
}
