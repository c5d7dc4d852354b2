// Package cmd implements StrIEM's CLI, replacing the teacher's
// flag.NewFlagSet-based dispatch (cmd/threatgraph/main.go's runProducer /
// runAnalyzer functions) with a cobra command tree, following the pack's
// krukkeniels-ai-box convention of a persistent --config flag loaded once
// in PersistentPreRunE and stashed in a package-level variable every
// subcommand reads.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"striem/config"
)

var (
	cfgFile string
	version = "dev"
)

// Cfg holds the configuration loaded by the root command's
// PersistentPreRunE, available to every subcommand.
var Cfg *config.Config

// SetVersion is called from main to inject build-time version info.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:     "striem",
	Short:   "StrIEM: streaming security event detection and storage",
	Version: version,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		Cfg = loaded
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (YAML/TOML/JSON)")
}
