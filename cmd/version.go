package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/dupdetect/config"
	"github.com/otherjamesbrown/dupdetect/pkg/buildinfo"
)

// NewVersionCommand creates the version command. It does not read the
// config file so it works on unconfigured hosts.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Example: `  dupdetect version
  dupdetect version --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Get("dupdetect")
			out := cmd.OutOrStdout()

			switch config.OutputFormat(globalFlags.output) {
			case config.OutputFormatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case config.OutputFormatYAML:
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(info)
			default:
				_, err := fmt.Fprintf(out, "dupdetect %s (%s)\n", buildinfo.String(), info.GoVersion)
				return err
			}
		},
	}
}
