package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/sourcefilter/cmd/config"
	"github.com/tphakala/sourcefilter/cmd/overrides"
	"github.com/tphakala/sourcefilter/cmd/reject"
	"github.com/tphakala/sourcefilter/internal/buildinfo"
	"github.com/tphakala/sourcefilter/internal/conf"
	"github.com/tphakala/sourcefilter/internal/logger"
	"github.com/tphakala/sourcefilter/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled from
// config file, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "sourcefilter",
		Short:         "Reject noisy source candidates by aperture signal-to-noise",
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding debug flag: %v", err))
	}

	fs := afero.NewOsFs()
	configCmd := config.Command(settings)
	rootCmd.AddCommand(
		reject.Command(settings, fs),
		overrides.Command(settings, fs),
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// config init must work without a readable config file
		if cmd.Parent() == configCmd && cmd.Name() == "init" {
			return nil
		}
		if configFile != "" {
			viper.SetConfigFile(configFile)
		}
		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings, build)
	}

	return rootCmd
}

// initialize sets up logging and opt-in error reporting once settings are known.
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if err := telemetry.InitSentry(settings, build); err != nil {
		// reporting is optional; a bad DSN must not block a run
		central.Module("main").Warn("error reporting disabled", logger.Error(err))
	}
	return nil
}
