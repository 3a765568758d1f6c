package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dupdetect/config"
	"github.com/otherjamesbrown/dupdetect/pkg/db"
	"github.com/otherjamesbrown/dupdetect/pkg/duplicates"
	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
	"github.com/otherjamesbrown/dupdetect/pkg/logging"
	"github.com/otherjamesbrown/dupdetect/pkg/observability"
	"github.com/otherjamesbrown/dupdetect/pkg/runlock"
	"github.com/otherjamesbrown/dupdetect/pkg/runlog"
)

// RunLog records and lists detection runs.
type RunLog interface {
	duplicates.RunRecorder
	List(ctx context.Context, limit int) ([]runlog.Entry, error)
	Close() error
}

// DetectCommandDeps holds the dependencies for the detect command.
type DetectCommandDeps struct {
	LoadConfig     func() (*config.CLIConfig, error)
	ConnectToDB    func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
	ConnectToRedis func(context.Context, *config.CLIConfig) (redis.UniversalClient, error)
	OpenRunLog     func(context.Context) (RunLog, error)
}

// DefaultDetectDeps returns the default dependencies for production use.
func DefaultDetectDeps() *DetectCommandDeps {
	return &DetectCommandDeps{
		LoadConfig:     config.LoadConfig,
		ConnectToDB:    connectToDatabase,
		ConnectToRedis: connectToRedis,
		OpenRunLog:     openRunLog,
	}
}

// openRunLog opens the lib/pq run ledger against the detection database.
func openRunLog(ctx context.Context) (RunLog, error) {
	dbCfg, err := resolveDBConfig()
	if err != nil {
		return nil, err
	}
	rec, err := runlog.Open(dbCfg.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := rec.Ping(ctx); err != nil {
		_ = rec.Close()
		return nil, fmt.Errorf("pinging run log database: %w", err)
	}
	return rec, nil
}

type detectOptions struct {
	activitiesOnly    bool
	organizationsOnly bool
	clear             bool
	dryRun            bool
	showPairs         bool
	metricsFile       string
	fixture           string
}

// entityTypes returns the entity types selected by the -only flags.
func (o detectOptions) entityTypes() []duplicates.EntityType {
	switch {
	case o.activitiesOnly:
		return []duplicates.EntityType{duplicates.EntityTypeActivity}
	case o.organizationsOnly:
		return []duplicates.EntityType{duplicates.EntityTypeOrganization}
	default:
		return duplicates.AllEntityTypes
	}
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	return newDetectCommand(DefaultDetectDeps())
}

func newDetectCommand(deps *DetectCommandDeps) *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect duplicate activities and organizations",
		Long: `Detect likely duplicate activities and organizations and store the pairs.

Activities are compared by IATI identifier, by the configured cross-reference
identifier type, by title similarity across reporting organizations with
overlapping dates (suggested links), and by title similarity within one
organization. Organizations are compared by external identifier, name,
acronym and name similarity. Each pair is reported once, by the first
heuristic that matched it.

Stored pairs are upserted on (entity_type, id_1, id_2). Use --clear to delete
stored pairs first; with --activities-only or --organizations-only only that
entity type's pairs are deleted.

Exit status is 1 when either entity type fails to load (the other is still
processed), on configuration errors, or when another run holds the run lock.
Failed upsert batches are reported but do not change the exit status.`,
		Example: `  # Detect and store duplicates for both entity types
  dupdetect detect

  # Recompute activity pairs from scratch
  dupdetect detect --activities-only --clear

  # Preview without writing, as JSON
  dupdetect detect --dry-run --output json

  # Run against a YAML fixture instead of the database
  dupdetect detect --fixture testdata/aims.yaml --dry-run --show-pairs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd.Context(), deps, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&opts.activitiesOnly, "activities-only", false, "Only process activities")
	cmd.Flags().BoolVar(&opts.organizationsOnly, "organizations-only", false, "Only process organizations")
	cmd.Flags().BoolVar(&opts.clear, "clear", false, "Delete stored pairs before detection")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Detect and report without writing anything")
	cmd.Flags().BoolVar(&opts.showPairs, "show-pairs", false, "Include every detected pair in the report")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "Load records from a YAML or JSON fixture instead of the database")

	return cmd
}

// runDetect executes one detection run and writes its summary to stdout.
func runDetect(ctx context.Context, deps *DetectCommandDeps, opts detectOptions, stdout, stderr io.Writer) error {
	cfg, err := loadWithFlags(deps.LoadConfig)
	if err != nil {
		return pferrors.NewConfigurationError("load config", err)
	}
	logger := newLogger(cfg, stderr)

	if opts.activitiesOnly && opts.organizationsOnly {
		logger.Warn("Both --activities-only and --organizations-only given; nothing to do")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	metrics := observability.NewDetectionMetrics(reg)
	coordOpts := []duplicates.CoordinatorOption{
		duplicates.WithLogger(logger),
		duplicates.WithMetrics(metrics),
	}

	var provider duplicates.Provider
	if opts.fixture != "" {
		store, err := loadFixtureFile(opts.fixture)
		if err != nil {
			return pferrors.NewConfigurationError("load fixture", err)
		}
		provider = store
		logger.Debug("Loaded fixture", logging.F("path", opts.fixture))
	} else {
		pool, err := deps.ConnectToDB(ctx, cfg)
		if err != nil {
			return pferrors.NewConfigurationError("connect database", err)
		}
		defer pool.Close()
		provider = duplicates.NewPostgresRepository(pool)

		if _, err := db.RegisterPoolStatsCollector(reg, pool, observability.Namespace, "dupdetect"); err != nil {
			logger.Warn("Failed to register pool metrics", logging.Err(err))
		}

		if cfg.RunLog.Enabled && !opts.dryRun {
			rl, err := deps.OpenRunLog(ctx)
			if err != nil {
				logger.Warn("Run log unavailable; this run will not be recorded", logging.Err(err))
			} else {
				defer rl.Close()
				coordOpts = append(coordOpts, duplicates.WithRunRecorder(rl))
			}
		}
	}

	if cfg.Redis.Enabled() && !opts.dryRun {
		client, err := deps.ConnectToRedis(ctx, cfg)
		if err != nil {
			return pferrors.NewConfigurationError("connect redis", err)
		}
		defer client.Close()

		coordOpts = append(coordOpts, duplicates.WithLocker(
			runlock.NewRedisLocker(client, runlock.WithTTL(cfg.Redis.LockTTL))))
		if cfg.Redis.PublishEvents {
			coordOpts = append(coordOpts, duplicates.WithEventPublisher(observability.NewRedisEventPublisher(client)))
		}
	}

	coordinator := duplicates.NewCoordinator(provider, cfg.Detection, coordOpts...)
	summary, runErr := coordinator.Run(ctx, duplicates.RunOptions{
		EntityTypes:  opts.entityTypes(),
		Clear:        opts.clear,
		DryRun:       opts.dryRun,
		IncludePairs: opts.showPairs,
	})

	if summary != nil {
		colorize := cfg.OutputFormat == config.OutputFormatText && isTerminal(stdout)
		rw, err := duplicates.NewReportWriter(stdout, cfg.OutputFormat.String(), colorize)
		if err != nil {
			return err
		}
		if err := rw.WriteSummary(summary); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}

	metricsFile := opts.metricsFile
	if metricsFile == "" {
		metricsFile = cfg.MetricsFile
	}
	if metricsFile != "" {
		if path, err := config.ExpandPath(metricsFile); err != nil {
			logger.Warn("Invalid metrics file path", logging.Err(err))
		} else if err := observability.WriteTextfile(path, reg); err != nil {
			logger.Warn("Failed to write metrics", logging.Err(err))
		}
	}

	return runErr
}

// loadFixtureFile opens a fixture and loads it into a MemoryStore.
func loadFixtureFile(path string) (*duplicates.MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fixture: %w", err)
	}
	defer f.Close()
	return duplicates.LoadFixture(f)
}
