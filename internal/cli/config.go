package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ishandutta2007/taskt/internal/infrastructure/config"
)

const redacted = "********"

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}

	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))

	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the stock values",
		Long: `Write a settings file with the stock values to the --config path.

A fresh listener auth key is generated. An existing file is kept unless
--force is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := rootOpts.formatter(cmd)
			path := rootOpts.ConfigPath

			if _, err := os.Stat(path); err == nil && !force {
				return reportExit(out, CodeConfig,
					NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path)))
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "checking settings file", err))
			}

			if err := config.Save(path, config.Default()); err != nil {
				return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "writing settings file", err))
			}
			return out.Success(fmt.Sprintf("wrote %s", path))
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	var secrets bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Long: `Print the effective settings: stock values, then the settings file,
then TASKT_* environment overrides. Secrets are masked unless
--show-secrets is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := rootOpts.formatter(cmd)

			env, err := loadEnvironment(rootOpts, cmd)
			if err != nil {
				return reportExit(out, CodeConfig, err)
			}
			cfg := *env.cfg
			if !secrets {
				redactSecrets(&cfg)
			}

			if rootOpts.Format == "json" {
				return out.Success(cfg)
			}
			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "encoding settings", err))
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&secrets, "show-secrets", false, "print keys, tokens and passwords")

	return cmd
}

func redactSecrets(cfg *config.Config) {
	if cfg.Listener.AuthKey != "" {
		cfg.Listener.AuthKey = redacted
	}
	if cfg.MQTT.Auth.Password != "" {
		cfg.MQTT.Auth.Password = redacted
	}
	if cfg.InfluxDB.Token != "" {
		cfg.InfluxDB.Token = redacted
	}
}
