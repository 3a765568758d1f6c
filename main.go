package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dupdetect/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "dupdetect",
	Short: "Duplicate detection for activities and organizations",
	Long: `dupdetect finds likely duplicate activity and organization records in an
aid information management database and stores them as reviewable pairs.

Run 'dupdetect detect' from cron or by hand, then review stored pairs with
'dupdetect pairs list'. Configuration is read from ~/.dupdetect/config.yaml
(or $DUPDETECT_CONFIG_DIR), DUPDETECT_* environment variables and flags.
The database is selected with DATABASE_URL or DB_* variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cmd.AddRootFlags(rootCmd)

	rootCmd.AddCommand(cmd.NewDetectCommand())
	rootCmd.AddCommand(cmd.NewPairsCommand())
	rootCmd.AddCommand(cmd.NewRunsCommand())
	rootCmd.AddCommand(cmd.NewDbCommand())
	rootCmd.AddCommand(cmd.NewCredentialsCommand())
	rootCmd.AddCommand(cmd.NewConfigCommand())
	rootCmd.AddCommand(cmd.NewVersionCommand())
}

func main() {
	// SIGINT/SIGTERM cancel the run; remaining batches are reported as skipped.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
