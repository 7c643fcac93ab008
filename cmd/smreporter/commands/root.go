package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "smreporter",
		Short: "smreporter - focused-window and media telemetry reporter",
		Long: `smreporter observes the focused window and the system media player and
streams that state to a configured endpoint over a persistent WebSocket.

Features:
  • Track the focused window (title, process, pid, icon)
  • Report media playback metadata and position
  • Permission-gated capture with a bounded media-API probe
  • Resilient connection with capped exponential backoff
  • Local diagnostics API with a live event stream`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/shikenmatrix/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("diagnostics-port", 0, "local diagnostics server port (0 disables)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("diagnostics_port", rootCmd.PersistentFlags().Lookup("diagnostics-port"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}
