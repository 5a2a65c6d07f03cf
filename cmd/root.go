// Package cmd assembles the rollcall command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/classroll/rollcall/cmd/attend"
	"github.com/classroll/rollcall/cmd/catalog"
	"github.com/classroll/rollcall/cmd/register"
	"github.com/classroll/rollcall/cmd/report"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/telemetry"
)

// RootCommand creates the root command. settings is filled from the config
// file, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings, version string) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "rollcall",
		Short:         "Face-recognition classroom attendance",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: search standard locations)")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		attend.Command(settings),
		register.Command(settings),
		catalog.Command(settings),
		report.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, configFile, version)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(telemetry.DefaultFlushTimeout)
		_ = logger.Global().Flush()
	}

	return rootCmd
}

// initialize loads settings, then sets up logging and error reporting.
func initialize(settings *conf.Settings, configFile, version string) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	return telemetry.InitSentry(settings, version)
}

// setupFlags defines flags that are global to the command line interface.
// Bound flags override the config file when settings are loaded.
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("db", "", "SQLite database path")
	flags.Bool("mqtt", false, "Publish session and attendance events over MQTT")
	flags.Bool("telemetry", false, "Serve Prometheus metrics")
	flags.String("listen", "", "Listen address of the metrics endpoint")

	bindings := map[string]string{
		"debug":     "debug",
		"db":        "output.sqlite.path",
		"mqtt":      "mqtt.enabled",
		"telemetry": "telemetry.enabled",
		"listen":    "telemetry.listen",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
