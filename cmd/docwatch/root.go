package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"docwatch/internal/config"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	policyPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "docwatch",
		Short: "Score risky edits between table snapshots",
		Long: `docwatch compares baseline and current snapshots of tracked tables,
classifies every changed cell by risk and renders a clustered heatmap of
where the risk concentrates.

Examples:
  # Score a single table
  docwatch compare --baseline old/plan.csv --current new/plan.csv

  # Score a batch listed in a manifest and draw the heatmap
  docwatch batch --manifest pairs.yaml --render

  # Serve the HTTP API
  docwatch serve --port 8001`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to docwatch.yaml")
	cmd.PersistentFlags().StringVar(&opts.policyPath, "policy", "", "Path to a column policy YAML (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	cmd.AddCommand(newCompareCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	return cmd
}

// load reads the configuration and applies the persistent flags.
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.policyPath != "" {
		cfg.PolicyFile = o.policyPath
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func (o *globalOptions) logger(cfg *config.Config) (*slog.Logger, func() error) {
	return config.SetupLogger(cfg.Log.File, cfg.Log.SlogLevel())
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
