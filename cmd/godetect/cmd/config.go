package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/godetect/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd, false)
		},
	}

	initCmd := &cobra.Command{
		Use:          "init [file]",
		Short:        "Write a configuration file with default values",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				file = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(file); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", file)
			}
			if err := config.GenerateDefaultConfigFile(file); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", file)
			return err
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	show := &cobra.Command{
		Use:          "show",
		Short:        "Print the resolved configuration",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			a.loader.PrintConfigInfo(cmd.ErrOrStderr())
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	validate := &cobra.Command{
		Use:          "validate",
		Short:        "Check the resolved configuration for errors",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return err
		},
	}

	cmd.AddCommand(initCmd, show, validate)
	return cmd
}
