package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"striem/internal/orchestrator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the StrIEM ingest, detection, and storage pipeline",
	RunE: func(c *cobra.Command, args []string) error {
		app, err := orchestrator.New(Cfg)
		if err != nil {
			return fmt.Errorf("construct application: %w", err)
		}
		return app.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
