package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/dupdetect/config"
	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
	"github.com/otherjamesbrown/dupdetect/pkg/runlog"
)

// RunsCommandDeps holds the dependencies for runs commands.
type RunsCommandDeps struct {
	LoadConfig func() (*config.CLIConfig, error)
	OpenRunLog func(context.Context) (RunLog, error)
}

// DefaultRunsDeps returns the default dependencies for production use.
func DefaultRunsDeps() *RunsCommandDeps {
	return &RunsCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenRunLog: openRunLog,
	}
}

// NewRunsCommand creates the runs command with its subcommands.
func NewRunsCommand() *cobra.Command {
	return newRunsCommand(DefaultRunsDeps())
}

func newRunsCommand(deps *RunsCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show detection run history",
	}
	cmd.AddCommand(newRunsListCommand(deps))
	return cmd
}

func newRunsListCommand(deps *RunsCommandDeps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent detection runs",
		Long: `List recent detection runs from the detection_runs ledger, newest first.

Dry runs are never recorded.`,
		Example: `  dupdetect runs list
  dupdetect runs list --limit 5 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(cmd.Context(), deps, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")

	return cmd
}

func runRunsList(ctx context.Context, deps *RunsCommandDeps, limit int, stdout io.Writer) error {
	cfg, err := loadWithFlags(deps.LoadConfig)
	if err != nil {
		return pferrors.NewConfigurationError("load config", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	rl, err := deps.OpenRunLog(ctx)
	if err != nil {
		return pferrors.NewConfigurationError("open run log", err)
	}
	defer rl.Close()

	entries, err := rl.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	return outputRuns(stdout, cfg.OutputFormat, entries)
}

// outputRuns formats run ledger entries.
func outputRuns(w io.Writer, format config.OutputFormat, entries []runlog.Entry) error {
	if entries == nil {
		entries = []runlog.Entry{}
	}
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATUS\tTYPES\tPAIRS\tFAILED BATCHES\tDURATION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.RunID,
			e.StartedAt.Format("2006-01-02 15:04:05"),
			e.Status,
			joinTypes(e.EntityTypes),
			e.PairsDetected,
			e.FailedBatches,
			formatDurationMs(e.Duration().Milliseconds()),
		)
	}
	return tw.Flush()
}

func joinTypes(types []string) string {
	if len(types) == 0 {
		return "-"
	}
	return strings.Join(types, ",")
}
