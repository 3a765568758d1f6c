package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dupdetect/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return newConfigCommand(config.LoadConfig)
}

func newConfigCommand(load func() (*config.CLIConfig, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration after applying the config file,
DUPDETECT_* environment variables and flags, in config file form.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadWithFlags(load)
			if err != nil {
				return err
			}
			path, _ := config.ConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", path)
			return cfg.WriteYAML(cmd.OutOrStdout())
		},
	})

	return cmd
}
