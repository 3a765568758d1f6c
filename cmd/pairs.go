package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dupdetect/config"
	"github.com/otherjamesbrown/dupdetect/pkg/duplicates"
	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
)

// PairsCommandDeps holds the dependencies for pairs commands.
type PairsCommandDeps struct {
	LoadConfig func() (*config.CLIConfig, error)
	// OpenReader returns the pair reader and a function releasing it.
	OpenReader func(context.Context, *config.CLIConfig) (duplicates.PairReader, func(), error)
}

// DefaultPairsDeps returns the default dependencies for production use.
func DefaultPairsDeps() *PairsCommandDeps {
	return &PairsCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenReader: func(ctx context.Context, cfg *config.CLIConfig) (duplicates.PairReader, func(), error) {
			pool, err := connectToDatabase(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return duplicates.NewPostgresRepository(pool), pool.Close, nil
		},
	}
}

type pairsListOptions struct {
	entityType     string
	detectionType  string
	suggestedLinks bool
	limit          int
	offset         int
}

// filter builds the PairFilter, validating the enum flags.
func (o pairsListOptions) filter() (duplicates.PairFilter, error) {
	f := duplicates.PairFilter{Limit: o.limit, Offset: o.offset}
	if o.limit < 0 || o.offset < 0 {
		return f, fmt.Errorf("--limit and --offset must not be negative")
	}
	if o.entityType != "" {
		et, err := duplicates.ParseEntityType(o.entityType)
		if err != nil {
			return f, err
		}
		f.EntityType = &et
	}
	if o.detectionType != "" {
		dt := duplicates.DetectionType(o.detectionType)
		if !dt.IsValid() {
			return f, fmt.Errorf("unknown detection type %q", o.detectionType)
		}
		f.DetectionType = &dt
	}
	if o.suggestedLinks {
		yes := true
		f.SuggestedLinks = &yes
	}
	return f, nil
}

// NewPairsCommand creates the pairs command with its subcommands.
func NewPairsCommand() *cobra.Command {
	return newPairsCommand(DefaultPairsDeps())
}

func newPairsCommand(deps *PairsCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pairs",
		Short:   "Inspect stored duplicate pairs",
		Aliases: []string{"duplicates"},
	}
	cmd.AddCommand(newPairsListCommand(deps))
	return cmd
}

func newPairsListCommand(deps *PairsCommandDeps) *cobra.Command {
	var opts pairsListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored duplicate pairs",
		Long: `List pairs stored in detected_duplicates, ordered by entity type and ids.

Filters combine with AND. --suggested-links shows only cross-organization
activity pairs flagged for linking.`,
		Example: `  dupdetect pairs list --entity-type activity --limit 20
  dupdetect pairs list --detection-type cross_org_similarity --output json
  dupdetect pairs list --suggested-links`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPairsList(cmd.Context(), deps, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.entityType, "entity-type", "", "Filter by entity type: activity, organization")
	cmd.Flags().StringVar(&opts.detectionType, "detection-type", "", "Filter by detection type")
	cmd.Flags().BoolVar(&opts.suggestedLinks, "suggested-links", false, "Only show suggested links")
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "Maximum number of pairs (0 for no limit)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of pairs to skip")

	return cmd
}

func runPairsList(ctx context.Context, deps *PairsCommandDeps, opts pairsListOptions, stdout io.Writer) error {
	filter, err := opts.filter()
	if err != nil {
		return pferrors.NewConfigurationError("parse filter", err)
	}

	cfg, err := loadWithFlags(deps.LoadConfig)
	if err != nil {
		return pferrors.NewConfigurationError("load config", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	reader, release, err := deps.OpenReader(ctx, cfg)
	if err != nil {
		return pferrors.NewConfigurationError("connect database", err)
	}
	defer release()

	pairs, err := reader.ListDuplicates(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing pairs: %w", err)
	}

	rw, err := duplicates.NewReportWriter(stdout, cfg.OutputFormat.String(),
		cfg.OutputFormat == config.OutputFormatText && isTerminal(stdout))
	if err != nil {
		return err
	}
	return rw.WritePairs(pairs)
}
