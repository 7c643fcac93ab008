package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shikenmatrix/reporter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage reporter configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(GetConfigFile())
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		fmt.Printf("Config file:       %s\n", mgr.GetConfigPath())
		fmt.Printf("Enabled:           %t\n", cfg.Reporter.Enabled)
		fmt.Printf("Endpoint:          %s\n", cfg.Reporter.Endpoint)
		fmt.Printf("Auth token set:    %t\n", cfg.Reporter.AuthToken != "")
		fmt.Printf("Media reporting:   %t\n", cfg.Reporter.EnableMediaReporting)
		fmt.Printf("Log level:         %s\n", cfg.LogLevel)
		fmt.Printf("Diagnostics port:  %d\n", cfg.DiagnosticsPort)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a reporter configuration value and persist it.

Keys: enabled, endpoint, token, media`,
	Example: `  smreporter config set endpoint wss://telemetry.example.com/ws
  smreporter config set token s3cret
  smreporter config set enabled true
  smreporter config set media false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(GetConfigFile())
		if err != nil {
			return err
		}
		rc := mgr.GetReporter()

		key, value := args[0], args[1]
		switch key {
		case "enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid boolean %q", value)
			}
			rc.Enabled = b
		case "endpoint":
			rc.Endpoint = value
		case "token":
			rc.AuthToken = value
		case "media":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid boolean %q", value)
			}
			rc.EnableMediaReporting = b
		default:
			return fmt.Errorf("unknown key %q (expected enabled, endpoint, token, or media)", key)
		}

		if err := rc.Validate(); err != nil {
			return err
		}
		if err := mgr.SetReporter(rc); err != nil {
			return err
		}
		fmt.Printf("Set %s\n", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
