package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"striem/internal/sigma"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate Sigma detection rules",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <rule.yml>",
	Short: "Compile a Sigma rule file and report errors without starting the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		compiled, err := sigma.Compile(raw)
		if err != nil {
			return err
		}
		fmt.Printf("OK id=%s title=%q level=%s logsource=%+v\n", compiled.ID, compiled.Title, compiled.Level, compiled.Logsource)
		return nil
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules currently persisted in the registry directory",
	RunE: func(c *cobra.Command, args []string) error {
		entries, err := os.ReadDir(Cfg.Registry.RulesDir)
		if err != nil {
			return fmt.Errorf("read rules directory: %w", err)
		}
		type row struct {
			File string `json:"file"`
		}
		rows := make([]row, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			rows = append(rows, row{File: e.Name()})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd, rulesListCmd)
	rootCmd.AddCommand(rulesCmd)
}
