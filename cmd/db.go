package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/dupdetect/config"
	"github.com/otherjamesbrown/dupdetect/pkg/db"
	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
)

// DbCommandDeps holds the dependencies for database commands.
type DbCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
	// Migrations is the migration source; the embedded schema by default.
	Migrations fs.FS
	// Stdin answers the apply confirmation prompt.
	Stdin io.Reader
}

// DefaultDbDeps returns the default dependencies for production use.
func DefaultDbDeps() *DbCommandDeps {
	return &DbCommandDeps{
		LoadConfig:  config.LoadConfig,
		ConnectToDB: connectToDatabase,
		Migrations:  db.Migrations(),
		Stdin:       os.Stdin,
	}
}

type dbMigrateOptions struct {
	dryRun bool
	target string
	yes    bool
}

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand() *cobra.Command {
	return newDbCommand(DefaultDbDeps())
}

func newDbCommand(deps *DbCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for dupdetect.

Manage the detected_duplicates and detection_runs schema. Migrations are
compiled into the binary and tracked in the schema_migrations table.

The db command requires DATABASE_URL or DB_* environment variables to be set.
When no password is configured it is read from the system keyring
(see 'dupdetect credentials').`,
		Example: `  dupdetect db status
  dupdetect db migrate
  dupdetect db migrate --dry-run
  dupdetect db migrate --target 001_detected_duplicates`,
		Aliases: []string{"database", "migrations"},
	}

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbStatusCommand(deps))

	return cmd
}

// newDbMigrateCommand creates the 'db migrate' subcommand.
func newDbMigrateCommand(deps *DbCommandDeps) *cobra.Command {
	var opts dbMigrateOptions

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Shows pending migrations before applying them. Each migration runs in a
transaction and is recorded in schema_migrations. If a migration fails it is
rolled back and no further migrations are attempted.`,
		Example: `  dupdetect db migrate
  dupdetect db migrate --dry-run
  dupdetect db migrate --yes --target 002_detection_runs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd.Context(), deps, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would be applied without executing")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Target version to migrate to (e.g., 001_detected_duplicates)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Apply without asking for confirmation")

	return cmd
}

// newDbStatusCommand creates the 'db status' subcommand.
func newDbStatusCommand(deps *DbCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show the current state of database migrations.

Displays three categories of migrations:
  - Applied: migrations that have been applied and are compiled in
  - Pending: compiled-in migrations that have not been applied yet
  - Drift: migrations that were applied but are not compiled into this binary`,
		Example: `  dupdetect db status
  dupdetect db status --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbStatus(cmd.Context(), deps, cmd.OutOrStdout())
		},
	}
}

// runDbMigrate executes the db migrate command.
func runDbMigrate(ctx context.Context, deps *DbCommandDeps, opts dbMigrateOptions, out io.Writer) error {
	cfg, err := loadWithFlags(deps.LoadConfig)
	if err != nil {
		return pferrors.NewConfigurationError("load config", err)
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return pferrors.NewConfigurationError("connect database", err)
	}
	defer pool.Close()

	status, err := db.GetMigrationStatus(ctx, pool, deps.Migrations)
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(out, "Pending migrations (%d):\n", len(status.Pending))
	for _, m := range status.Pending {
		fmt.Fprintf(out, "  %s - %s\n", m.Version, m.Name)
	}
	fmt.Fprintln(out)

	if opts.dryRun {
		fmt.Fprintln(out, "Dry run mode: no migrations applied.")
		return nil
	}

	if !opts.yes && !confirm(deps.Stdin, out, "Apply these migrations? (y/N): ") {
		fmt.Fprintln(out, "Migration cancelled.")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if opts.target != "" {
		fmt.Fprintf(out, "Applying migrations up to version %s...\n", opts.target)
	} else {
		fmt.Fprintln(out, "Applying all pending migrations...")
	}
	result, err := db.RunMigrationsToTarget(ctx, pool, deps.Migrations, opts.target)
	if err != nil {
		fmt.Fprintf(out, "\n%s %v\n", red("Migration failed:"), err)
		if result != nil && len(result.Applied) > 0 {
			fmt.Fprintln(out, "\nSuccessfully applied before failure:")
			for _, v := range result.Applied {
				fmt.Fprintf(out, "  %s %s\n", green("✓"), v)
			}
		}
		return err
	}

	fmt.Fprintln(out)
	if len(result.Applied) > 0 {
		fmt.Fprintln(out, green(fmt.Sprintf("Successfully applied %d migration(s):", len(result.Applied))))
		for _, v := range result.Applied {
			fmt.Fprintf(out, "  %s %s\n", green("✓"), v)
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped %d migration(s) (already applied):\n", len(result.Skipped))
		for _, v := range result.Skipped {
			fmt.Fprintf(out, "  - %s\n", v)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, green("Migrations completed successfully."))
	return nil
}

// confirm reads a y/N answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

// runDbStatus executes the db status command.
func runDbStatus(ctx context.Context, deps *DbCommandDeps, out io.Writer) error {
	cfg, err := loadWithFlags(deps.LoadConfig)
	if err != nil {
		return pferrors.NewConfigurationError("load config", err)
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return pferrors.NewConfigurationError("connect database", err)
	}
	defer pool.Close()

	health := db.CheckPool(ctx, pool)

	status, err := db.GetMigrationStatus(ctx, pool, deps.Migrations)
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	return outputMigrationStatus(out, cfg.OutputFormat, dbStatusReport{Pool: &health, MigrationStatus: *status})
}

// dbStatusReport is what `db status` prints: pool health plus the
// migration lists at the top level.
type dbStatusReport struct {
	Pool               *db.PoolHealth `json:"pool,omitempty" yaml:"pool,omitempty"`
	db.MigrationStatus `yaml:",inline"`
}

// outputMigrationStatus formats and outputs migration status.
func outputMigrationStatus(out io.Writer, format config.OutputFormat, report dbStatusReport) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(report)
	default:
		return outputMigrationStatusText(out, report)
	}
}

// outputMigrationStatusText formats migration status for terminal display.
func outputMigrationStatusText(out io.Writer, report dbStatusReport) error {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if report.Pool != nil {
		line := report.Pool.String()
		if report.Pool.Reachable {
			line = green(line)
		} else {
			line = red(line)
		}
		fmt.Fprintf(out, "Database: %s\n\n", line)
	}

	status := &report.MigrationStatus

	writeApplied := func(entries []db.MigrationStatusEntry) {
		fmt.Fprintln(out, "  VERSION                    NAME                              APPLIED")
		fmt.Fprintln(out, "  -------                    ----                              -------")
		for _, m := range entries {
			appliedAt := "-"
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "  %-26s %-33s %s\n",
				truncateDbString(m.Version, 26),
				truncateDbString(m.Name, 33),
				appliedAt)
		}
		fmt.Fprintln(out)
	}

	if len(status.Applied) > 0 {
		fmt.Fprintln(out, green(fmt.Sprintf("Applied Migrations (%d):", len(status.Applied))))
		writeApplied(status.Applied)
	}

	if len(status.Pending) > 0 {
		fmt.Fprintln(out, yellow(fmt.Sprintf("Pending Migrations (%d):", len(status.Pending))))
		fmt.Fprintln(out, "  VERSION                    NAME")
		fmt.Fprintln(out, "  -------                    ----")
		for _, m := range status.Pending {
			fmt.Fprintf(out, "  %-26s %s\n", truncateDbString(m.Version, 26), m.Name)
		}
		fmt.Fprintln(out)
	}

	if len(status.Drift) > 0 {
		fmt.Fprintln(out, red(fmt.Sprintf("Drift (%d) - applied but not compiled in:", len(status.Drift))))
		writeApplied(status.Drift)
	}

	if len(status.Applied) == 0 && len(status.Pending) == 0 && len(status.Drift) == 0 {
		fmt.Fprintln(out, "No migrations found.")
		return nil
	}

	fmt.Fprintf(out, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		fmt.Fprintf(out, ", %s", red(fmt.Sprintf("%d drift", len(status.Drift))))
	}
	fmt.Fprintln(out)

	return nil
}

// truncateDbString truncates a string to maxLen, adding "..." if truncated.
func truncateDbString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
