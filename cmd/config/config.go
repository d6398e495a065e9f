// Package config provides commands to create and inspect the sourcefilter configuration
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/sourcefilter/internal/conf"
)

// Command creates the config parent command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or print the configuration",
	}
	cmd.AddCommand(initCommand(), showCommand(settings))
	return cmd
}

func initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			} else if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 1 {
				path = filepath.Join(paths[1], "config.yaml")
			}
			if err := conf.WriteDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
			return nil
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after file, environment and flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			if save != "" {
				if err := conf.SaveYAMLConfig(save, settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", save)
				return nil
			}
			data, err := yaml.Marshal(redact(*settings))
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "Write the effective configuration to this path instead of printing it")
	return cmd
}

// redact hides credentials from printed output.
func redact(s conf.Settings) conf.Settings {
	if s.Overrides.MySQL.Password != "" {
		s.Overrides.MySQL.Password = "********"
	}
	if s.Sentry.DSN != "" {
		s.Sentry.DSN = "********"
	}
	return s
}
