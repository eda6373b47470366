package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		redacted := *cfg
		if redacted.Store.APIKey != "" {
			redacted.Store.APIKey = "***"
		}
		data, err := json.MarshalIndent(&redacted, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file if none exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load writes defaults when the file is missing.
		if _, err := os.Stat(cfgPath); err == nil {
			fmt.Fprintln(os.Stdout, "Config already exists at", cfgPath)
			return nil
		}
		loadConfig()
		fmt.Fprintln(os.Stdout, "Configuration written to", cfgPath)
		return nil
	},
}
