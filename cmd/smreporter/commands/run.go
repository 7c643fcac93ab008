package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shikenmatrix/reporter/internal/api"
	"github.com/shikenmatrix/reporter/internal/config"
	"github.com/shikenmatrix/reporter/internal/event"
	"github.com/shikenmatrix/reporter/internal/logger"
	"github.com/shikenmatrix/reporter/internal/reporter"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reporter in the foreground",
	Long: `Start the reporter engine and keep it running until interrupted.

The engine samples the focused window (and, when enabled, media playback)
and streams changes to the configured endpoint.`,
	Example: `  # Run with the persisted configuration
  smreporter run

  # Run with the local diagnostics API on port 8123
  smreporter run --diagnostics-port 8123

  # Run with debug logging
  smreporter run --log-level debug`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		configMgr.SetLogLevel(viper.GetString("log_level"))
	}
	if viper.IsSet("diagnostics_port") && viper.GetInt("diagnostics_port") > 0 {
		configMgr.SetDiagnosticsPort(viper.GetInt("diagnostics_port"))
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("daemon")

	reporterCfg := cfg.Reporter
	if !reporterCfg.Enabled {
		return fmt.Errorf("reporter is disabled; enable it with `smreporter config set enabled true`")
	}

	var diag *api.Server
	if cfg.DiagnosticsPort > 0 {
		diag = api.NewServer()
		reporter.SetWindowCallback(func(info *event.WindowInfo, _ uintptr) {
			diag.PublishWindow(info)
		}, 0)
		reporter.SetMediaCallback(func(info *event.MediaInfo, _ uintptr) {
			diag.PublishMedia(info)
		}, 0)
		reporter.SetLogCallback(func(level event.LogLevel, message string, _ uintptr) {
			diag.PublishLog(level, message)
		}, 0)

		go func() {
			if err := diag.Start(cfg.DiagnosticsPort); err != nil {
				log.Error().Err(err).Msg("Diagnostics server failed")
			}
		}()
	}

	handle := reporter.Start(&reporterCfg)
	if handle == nil {
		return fmt.Errorf("failed to start reporter (invalid config or already running)")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info().Str("endpoint", reporterCfg.Endpoint).Msg("Reporter running, press Ctrl+C to stop")
	<-sigChan

	log.Info().Msg("Shutting down")
	if !reporter.Stop(handle) {
		return fmt.Errorf("failed to stop reporter cleanly")
	}
	return nil
}
